// Command simpledb inspects and maintains SimpleDB tables.
package main

import "github.com/mesh-intelligence/simpledb/internal/cli"

func main() {
	cli.Execute()
}
