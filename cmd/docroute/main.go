// Command docroute serves a route-table driven JSON API backed by MongoDB.
package main

import "github.com/nimburion/docroute/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{Name: "docroute"}))
}
