// Command intakectl runs operator tasks against the intake database:
// migrations, seeding, schema inspection and the orphan sweep.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
