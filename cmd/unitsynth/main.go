// Package main is the entry point for the unitsynth CLI.
//
// Usage:
//
//	unitsynth [flags] <command> [args]
//
// Commands:
//
//	synth    - Synthesize text with a recorded voice
//	build    - Build and persist the inventory snapshot of a voice
//	inspect  - Show the phonemes and instances of a voice
//	voices   - List available voices
//	config   - Show and edit ~/.unitsynth/config.yaml
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/unitsynth/cmd/unitsynth/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
