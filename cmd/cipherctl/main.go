// Package main is cipherctl, a command-line client that encodes and decodes
// text through cipherd and falls back to the in-process transforms when the
// server cannot be reached.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
