// Package cypherogm maps Go structs to a Neo4j property graph.
//
// Register your types once, track objects in a GraphContext and Save the
// whole reachable object graph; load it back with include queries compiled
// to a single Cypher statement.
//
// The module is organized into three packages:
//
//   - [github.com/CaliLuke/go-cypherogm/cypher] — Cypher AST nodes and compiler
//   - [github.com/CaliLuke/go-cypherogm/ogm] — mapping core: registry, synchronization, include queries
//   - [github.com/CaliLuke/go-cypherogm/driver] — Executor over the official Neo4j Go driver
//
// The cypher and ogm packages compile and test without a running database.
// cmd/ogmctl is a small CLI over a sample bookstore model.
package cypherogm
