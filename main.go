// Command dirhover shows recursive directory statistics the way a file
// explorer renders them on hover.
package main

import (
	"fmt"
	"os"

	"github.com/idelchi/dirhover/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "unknown"

func main() {
	if err := cli.New(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
