// Package spot2 is a datamapper-style object-relational mapping layer.
//
// Entity types are described declaratively through the metadata package
// (fields, primary keys, and relations), queried through the mapper package,
// and hydrated back into generic entities with lazy, batched relation
// loading. Relations are always resolved with separate batched queries (one
// per relation per nesting level, two for many-to-many), never with SQL
// joins, so loading a collection of N owners costs a constant number of
// queries regardless of N.
//
// The root package holds the error taxonomy shared by all subpackages.
package spot2
