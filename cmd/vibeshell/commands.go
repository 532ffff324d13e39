package main

import (
	"io"
	"os"

	"vibeshell/internal/config"
	"vibeshell/internal/signalfile"
)

type commandRunner interface {
	Run(args []string) error
}

type commandWiring struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig configLoader
	newCore    coreFactory
	newClient  clientFactory
	runUI      uiRunner
	sendSignal func(path, command string) error
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: config.Load,
		newCore:    newRuntime,
		newClient:  newStatusClient,
		runUI:      runUI,
		sendSignal: signalfile.Send,
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"ui":     NewUICommand(wiring.stderr, wiring.loadConfig, wiring.newCore, wiring.runUI),
		"send":   NewSendCommand(wiring.stdout, wiring.stderr, wiring.loadConfig, wiring.newCore),
		"reset":  NewResetCommand(wiring.stdout, wiring.stderr, wiring.loadConfig, wiring.newCore),
		"status": NewStatusCommand(wiring.stdout, wiring.stderr, wiring.loadConfig, wiring.newClient),
		"signal": NewSignalCommand(wiring.stdout, wiring.stderr, wiring.loadConfig, wiring.sendSignal),
		"config": NewConfigCommand(wiring.stdout, wiring.stderr, wiring.loadConfig),
	}
}
