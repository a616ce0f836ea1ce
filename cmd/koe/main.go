// Package main provides the koe speech synthesis CLI.
//
// Usage:
//
//	koe [flags] <command> [args]
//
// Commands:
//
//	tts          - Synthesize text (or kana with --kana) to a WAV file
//	query        - Build an AudioQuery from text or kana
//	synth        - Render an AudioQuery file to WAV
//	model        - Inspect, pack and generate voice model bundles
//	dict         - Manage a user dictionary file
//	lexicon      - Compile a base lexicon directory
//	interactive  - Synthesize lines read from stdin
//	config       - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.koe/koe/
//	Use 'koe config' commands to manage contexts. KOE_* environment
//	variables (also read from a .env file) override the active context.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/koe/cmd/koe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
