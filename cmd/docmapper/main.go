// Command docmapper inspects the document mapping of Go packages without
// running them:
//   - scan prints the storage layout of every mapped struct
//   - check reports the configuration errors mapping them would raise,
//     including problems in a mapping file
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
