package relation

import (
	"context"
	"fmt"
	"strings"

	"github.com/beyondautomation/spot2/entity"
	"github.com/beyondautomation/spot2/metadata"
)

// EagerLoadOnCollection resolves this relation for every owner in the
// collection with exactly one batched query, or two for through relations.
// Every owner ends up with an explicit value: a matched entity, a collection
// (possibly empty), or the None sentinel. No owner is left unset.
func (d *Descriptor) EagerLoadOnCollection(ctx context.Context, owners *entity.Collection) error {
	if err := d.IdentityFromCollection(owners); err != nil {
		return err
	}

	ownerField, err := d.ownerKeyField()
	if err != nil {
		return err
	}

	if d.def.Kind == metadata.KindHasManyThrough {
		return d.eagerLoadThrough(ctx, owners, ownerField)
	}

	targetField, err := d.targetKeyField()
	if err != nil {
		return err
	}
	targetPK, err := d.targetPrimaryKey()
	if err != nil {
		return err
	}

	var targets *entity.Collection
	if len(d.identities) == 0 {
		targets = entity.NewCollectionWithIdentities(nil, nil)
	} else {
		q, err := d.BuildQuery(ctx)
		if err != nil {
			return err
		}
		targets, err = d.runChunked(ctx, q, d.def.Target, targetField)
		if err != nil {
			return err
		}
	}

	// One grouping pass keyed by the target-side key value, then one
	// assignment pass keyed by the owner-side value. The key direction
	// parameterization above is the only thing that differs between the
	// forward variants and belongs-to.
	grouped := make(map[string][]*entity.Entity)
	for _, target := range targets.Entities() {
		raw := target.Get(targetField)
		if raw == nil {
			continue
		}
		key := fmt.Sprint(raw)
		grouped[key] = append(grouped[key], target)
	}

	for _, owner := range owners.Entities() {
		raw := owner.Get(ownerField)
		var matches []*entity.Entity
		if raw != nil {
			matches = grouped[fmt.Sprint(raw)]
		}
		d.assign(owner, matches, targetPK)
	}
	return nil
}

// eagerLoadThrough distributes a two-query pivot resolution: pivot rows
// scoped by owner keys, then targets scoped by the pivot's foreign keys.
func (d *Descriptor) eagerLoadThrough(ctx context.Context, owners *entity.Collection, ownerField string) error {
	targetPK, err := d.targetPrimaryKey()
	if err != nil {
		return err
	}

	var targets *entity.Collection
	if len(d.identities) == 0 {
		d.pivotPairs = nil
		targets = entity.NewCollectionWithIdentities(nil, nil)
	} else {
		if err := d.loadPivot(ctx); err != nil {
			return err
		}
		targetField, err := d.targetKeyField()
		if err != nil {
			return err
		}
		// The target half is keyed by pivot foreign keys, which can exceed
		// the IN cap just like the identity half.
		targetKeys := d.pivotTargetKeys()
		q, err := d.source.NewQuery(d.def.Target)
		if err != nil {
			return err
		}
		q.WhereFragment(identityFragment(targetField, targetKeys))
		targets, err = d.runChunkedValues(ctx, q, d.def.Target, targetField, targetKeys)
		if err != nil {
			return err
		}
	}

	targetsByPK := make(map[string]*entity.Entity, targets.Len())
	for _, target := range targets.Entities() {
		raw := target.Get(targetPK)
		if raw == nil {
			continue
		}
		targetsByPK[fmt.Sprint(raw)] = target
	}

	// Walk pivot rows once, resolving per-owner target lists. Owners
	// sharing a target each get the same entity instance, and duplicate
	// pivot rows attach a target to an owner only once.
	byOwner := make(map[string][]*entity.Entity)
	attached := make(map[string]map[string]struct{})
	for _, pair := range d.pivotPairs {
		targetKey := fmt.Sprint(pair.targetKey)
		target, ok := targetsByPK[targetKey]
		if !ok {
			continue
		}
		ownerKey := fmt.Sprint(pair.ownerKey)
		if attached[ownerKey] == nil {
			attached[ownerKey] = make(map[string]struct{})
		}
		if _, dup := attached[ownerKey][targetKey]; dup {
			continue
		}
		attached[ownerKey][targetKey] = struct{}{}
		byOwner[ownerKey] = append(byOwner[ownerKey], target)
	}

	for _, owner := range owners.Entities() {
		raw := owner.Get(ownerField)
		var matches []*entity.Entity
		if raw != nil {
			matches = byOwner[fmt.Sprint(raw)]
		}
		owner.Relation(d.name, entity.NewCollection(matches, targetPK))
	}
	return nil
}

func (d *Descriptor) assign(owner *entity.Entity, matches []*entity.Entity, targetPK string) {
	if d.def.ToMany() {
		owner.Relation(d.name, entity.NewCollection(matches, targetPK))
		return
	}
	if len(matches) == 0 {
		owner.Relation(d.name, None)
		return
	}
	owner.Relation(d.name, matches[0])
}

// EagerLoad drives batched relation loading for a collection and a list of
// relation paths, one batched query per relation per nesting level. A path
// is a single relation name or a dot-separated chain; chain prefixes are
// always loaded even when not listed themselves.
//
// An empty collection, an empty path list, or a context already inside
// automatic registration short-circuits: that work is bounded by the load
// context already.
func EagerLoad(ctx context.Context, src Source, lc LoadContext, owners *entity.Collection, paths []string) error {
	if owners.Len() == 0 || len(paths) == 0 || lc.AutoLoading {
		return nil
	}

	ownerType, err := src.EntityType(owners.First().TypeName())
	if err != nil {
		return err
	}

	topLevel, subPaths := partitionPaths(paths)
	for _, name := range topLevel {
		desc, err := NewDescriptor(src, ownerType, name)
		if err != nil {
			return err
		}
		if err := desc.EagerLoadOnCollection(ctx, owners); err != nil {
			return err
		}

		nested := subPaths[name]
		if len(nested) == 0 {
			continue
		}
		sub, err := relatedSubCollection(src, desc, owners)
		if err != nil {
			return err
		}
		// Recursion terminates because each level consumes one dot
		// segment; the sub-context is a fresh explicit load, not an
		// automatic one.
		if err := EagerLoad(ctx, src, lc, sub, nested); err != nil {
			return err
		}
	}
	return nil
}

// partitionPaths splits paths into ordered top-level names and the per-name
// remainder chains. A name appearing only as a chain prefix is promoted to a
// top-level name so intermediate levels always load.
func partitionPaths(paths []string) ([]string, map[string][]string) {
	var topLevel []string
	seen := make(map[string]struct{})
	subPaths := make(map[string][]string)

	appendName := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			topLevel = append(topLevel, name)
		}
	}

	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		name, rest, found := strings.Cut(path, ".")
		appendName(name)
		if found && rest != "" {
			subPaths[name] = append(subPaths[name], rest)
		}
	}
	return topLevel, subPaths
}

// relatedSubCollection gathers every related entity the descriptor just
// attached across the owner collection, deduplicated by primary key, as the
// owner collection for the next nesting level.
func relatedSubCollection(src Source, desc *Descriptor, owners *entity.Collection) (*entity.Collection, error) {
	targetType, err := src.EntityType(desc.Def().Target)
	if err != nil {
		return nil, err
	}
	pk, err := targetType.PrimaryKeyField()
	if err != nil {
		return nil, err
	}

	var related []*entity.Entity
	seen := make(map[string]struct{})
	appendEntity := func(e *entity.Entity) {
		raw := e.Get(pk.Name)
		if raw == nil {
			return
		}
		key := fmt.Sprint(raw)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		related = append(related, e)
	}

	for _, owner := range owners.Entities() {
		switch value := owner.Relation(desc.Name()).(type) {
		case *entity.Entity:
			appendEntity(value)
		case *entity.Collection:
			for _, e := range value.Entities() {
				appendEntity(e)
			}
		}
	}
	return entity.NewCollection(related, pk.Name), nil
}
