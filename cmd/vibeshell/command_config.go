package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"strings"

	"vibeshell/internal/config"
)

const (
	configFormatJSON = "json"
	configFormatTOML = "toml"
)

type ConfigCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig configLoader
}

type configOutput struct {
	ConfigPath string        `json:"config_path,omitempty"`
	Config     config.Config `json:"config"`
}

func NewConfigCommand(stdout, stderr io.Writer, loadConfig configLoader) *ConfigCommand {
	return &ConfigCommand{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: loadConfig,
	}
}

func (c *ConfigCommand) Run(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	defaults := fs.Bool("default", false, "print default config values")
	format := fs.String("format", configFormatJSON, "output format: json|toml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	resolvedFormat, err := resolveConfigFormat(*format)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if !*defaults {
		cfg, err = c.loadConfig()
		if err != nil {
			return err
		}
	}
	cfg = cfg.Redacted()

	switch resolvedFormat {
	case configFormatTOML:
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err = c.stdout.Write(data)
		return err
	default:
		out := configOutput{Config: cfg}
		if path, err := config.ConfigPath(); err == nil {
			out.ConfigPath = path
		}
		encoder := json.NewEncoder(c.stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}
}

func resolveConfigFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", configFormatJSON:
		return configFormatJSON, nil
	case configFormatTOML:
		return configFormatTOML, nil
	default:
		return "", errors.New("invalid format: must be json or toml")
	}
}
