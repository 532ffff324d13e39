package main

import (
	"fmt"
	"os"
)

const usageText = `vibeshell is a terminal chat shell for an OpenCode server.

Usage:
  vibeshell <command> [flags]

Commands:
  ui       run the terminal UI (default)
  send     send one prompt to the shared conversation
  reset    replace the conversation with a fresh session
  status   show server health and the canonical session
  signal   send a command to a running shell (reset|show|hide|toggle)
  config   print configuration (effective or defaults)
  help     show help

Flags:
  -h, --help   show help

Examples:
  vibeshell
  vibeshell send --wait "summarize the last commit"
  vibeshell send '!browser'
  vibeshell signal toggle
  vibeshell config --format toml
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"ui"}
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	}

	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	commands := buildCommands(wiring)
	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	exitOnErr(args[0], runner.Run(args[1:]), wiring.stderr)
}
