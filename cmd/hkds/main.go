// Command hkds is a thin provisioning-and-demonstration CLI for the HKDS
// derivation tree. It is not part of the core; per spec.md §1 the
// "demonstration queue and CLI" are external collaborators, so every
// cryptographic operation it performs goes through the exported pkg/hkds,
// pkg/hkds/client, and pkg/hkds/server APIs.
package main

import (
	"fmt"
	"os"

	"github.com/kdflabs/hkds-go/cmd/hkds/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
