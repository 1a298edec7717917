// Command caldavsync-demo drives caldavsync's provider against one CalDAV
// account and a local on-disk calendar store, showing live progress in a
// terminal UI.
package main

import (
	"os"

	"caldavsync/cmd/caldavsync-demo/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
