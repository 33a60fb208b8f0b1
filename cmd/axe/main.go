// Command axe checks whether a finite multi-threaded execution trace is
// admitted by a specified shared-memory consistency model.
package main

import (
	"os"

	"github.com/go-axe/axe/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
