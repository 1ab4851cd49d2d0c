// ogmctl exercises the ogm mapping layer against a Neo4j server using the
// bookstore sample model.
//
// Usage:
//
//	ogmctl compile
//	ogmctl schema [--apply]
//	ogmctl seed
//	ogmctl show
//	ogmctl purge
package main

import (
	"fmt"
	"os"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
