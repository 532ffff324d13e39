package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"vibeshell/internal/signalfile"
)

type SignalCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig configLoader
	send       func(path, command string) error
}

func NewSignalCommand(stdout, stderr io.Writer, loadConfig configLoader, send func(path, command string) error) *SignalCommand {
	return &SignalCommand{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: loadConfig,
		send:       send,
	}
}

func (c *SignalCommand) Run(args []string) error {
	fs := flag.NewFlagSet("signal", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	path := fs.String("path", "", "signal file (defaults to the configured path)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one command is required: reset|show|hide|toggle")
	}
	command := strings.ToLower(strings.TrimSpace(fs.Arg(0)))
	if !signalfile.IsKnown(command) {
		return fmt.Errorf("unknown command %q", command)
	}

	target := strings.TrimSpace(*path)
	if target == "" {
		cfg, err := c.loadConfig()
		if err != nil {
			return err
		}
		target = cfg.SignalPath()
	}
	if err := c.send(target, command); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s -> %s\n", command, target)
	return nil
}
