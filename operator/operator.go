// Package operator maps where-clause condition tokens to SQL fragment
// builders and compiles condition maps into squirrel expressions. Builders
// are stateless; the registry hands out one shared instance per token.
package operator

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"

	"github.com/beyondautomation/spot2"
)

// Builder turns one (column, value) pair into a SQL fragment. The column
// arrives already quoted.
type Builder interface {
	Fragment(column string, value any) (sq.Sqlizer, error)
}

// Registry resolves condition tokens to fragment builders. Built-in tokens
// are installed by NewRegistry; custom ones are added with Register at
// startup. Lookups are safe for concurrent use once registration is done.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry preloaded with the built-in operators.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]Builder)}
	r.installBuiltins()
	return r
}

// Register adds a builder under token. Registering an already-known token is
// a configuration error, surfaced at startup rather than per-request.
func (r *Registry) Register(token string, b Builder) error {
	normalized := strings.ToLower(strings.TrimSpace(token))
	if normalized == "" {
		return fmt.Errorf("operator: empty token")
	}
	if b == nil {
		return fmt.Errorf("operator: nil builder for token %q", token)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[normalized]; ok {
		return fmt.Errorf("operator: token %q already registered", token)
	}
	r.builders[normalized] = b
	return nil
}

// MustRegister registers and panics on configuration errors.
func (r *Registry) MustRegister(token string, b Builder) {
	if err := r.Register(token, b); err != nil {
		panic(err)
	}
}

// Resolve returns the shared builder for a token, case-insensitively.
func (r *Registry) Resolve(token string) (Builder, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[normalized]
	if !ok {
		return nil, spot2.NewUnsupportedOperatorError(token)
	}
	return b, nil
}

// Tokens returns all registered tokens in sorted order.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokens := make([]string, 0, len(r.builders))
	for token := range r.builders {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

func (r *Registry) installBuiltins() {
	register := func(b Builder, tokens ...string) {
		for _, token := range tokens {
			r.builders[token] = b
		}
	}
	register(equalsBuilder{}, "=", ":eq")
	register(notBuilder{}, "!=", "<>", ":not", ":ne")
	register(compareBuilder{op: "<"}, "<", ":lt")
	register(compareBuilder{op: "<="}, "<=", ":lte")
	register(compareBuilder{op: ">"}, ">", ":gt")
	register(compareBuilder{op: ">="}, ">=", ":gte")
	register(inBuilder{}, "in", ":in")
	register(likeBuilder{negate: false}, ":like")
	register(likeBuilder{negate: true}, ":notlike")
	register(regexBuilder{}, "~=", "=~", ":regex")
	register(fulltextBuilder{boolean: false}, ":fulltext")
	register(fulltextBuilder{boolean: true}, ":fulltext_boolean")
}
