// Package driver runs ogm statements against a Neo4j server using the
// official neo4j-go-driver.
//
// A Driver owns the connection pool. Sessions and explicit transactions
// opened from it implement ogm.Executor, so a GraphContext can save through
// either:
//
//	drv, err := driver.Open(ctx, driver.Config{URI: "neo4j://localhost:7687", Username: "neo4j", Password: "secret"})
//	if err != nil {
//		return err
//	}
//	defer drv.Close(ctx)
//
//	err = drv.InTransaction(ctx, func(exec ogm.Executor) error {
//		return gc.Save(ctx, exec)
//	})
//
// Returned rows are converted to plain Go values: nodes and relationships
// become their property maps and temporal values become time.Time or
// time.Duration.
package driver
