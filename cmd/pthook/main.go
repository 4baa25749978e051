// pthook is the git-side companion of patchtrackd: it carries the
// post-receive hook plus the small lookup and update commands the hook is
// built from.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pthook:", err)
		os.Exit(1)
	}
}
