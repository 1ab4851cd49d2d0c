// Package ogm maps Go structs to nodes and relationships of a property graph
// and keeps them synchronized.
//
// Types are registered once at start-up:
//
//	ogm.MustRegister[Book]()
//	ogm.MustRegister[Chapter]()
//	if err := ogm.RegisterRelation[Book, Chapter]("Chapters", "Book"); err != nil { ... }
//
// A GraphContext tracks objects and writes the whole reachable object graph
// on Save. Navigation properties (fields of type *T or []*T for a registered
// T) become edges of type Connection carrying the property name; each Save
// stamps the edges it writes with a new version and removes the edges of the
// same property that were not rewritten, so a slice field's membership is
// replaced as a whole.
//
//	gc := ogm.NewGraphContext(ogm.WithLogger(logger))
//	_ = gc.Track(&Book{Name: "Dune", Chapters: chapters})
//	err := gc.Save(ctx, session)
//
// A Query fetches a type together with the related objects requested by
// Include and IncludeCollection, compiled into a single Cypher statement:
//
//	q, _ := ogm.NewQuery[Book]()
//	chapters, _ := ogm.IncludeCollection[Chapter](q.Root(), "Chapters")
//	_, _ = ogm.Include[Book](chapters, "Book")
//	books, err := q.Execute(ctx, session)
//
// Relations whose edges carry properties go through a connection type, a
// struct holding the edge properties and pointers to both nodes. It is
// registered with RegisterConnection and fetched with IncludeVia or
// IncludeCollectionVia:
//
//	type Rating struct {
//		Stars  int
//		Reader *Reader
//		Book   *Book
//	}
//	err := ogm.RegisterConnection[Reader, Rating, Book]("Ratings", "Ratings")
//	_, _ = ogm.IncludeCollectionVia[Rating, Book](q.Root(), "Ratings")
//
// Statements are run by an Executor; the driver package provides one over
// the Neo4j Go driver.
package ogm
