// Command gosession drives a token session against an authentication backend from the
// shell. Tokens persist between invocations through the configured storage driver.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
