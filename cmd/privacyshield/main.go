// Command privacyshield de-identifies PDF documents, text and images.
package main

import (
	"os"

	"github.com/alzaheer/privacyshield/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
