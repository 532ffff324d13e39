package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"vibeshell/internal/session"
	"vibeshell/internal/types"
)

type SendCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig configLoader
	newCore    coreFactory
}

func NewSendCommand(stdout, stderr io.Writer, loadConfig configLoader, newCore coreFactory) *SendCommand {
	return &SendCommand{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: loadConfig,
		newCore:    newCore,
	}
}

// Run submits one line of input. Agent prompts block until the server
// finishes the turn; the reply text is printed.
func (c *SendCommand) Run(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	timeout := fs.Duration("timeout", 0, "give up after this long (0 waits for the turn)")
	raw := fs.Bool("json", false, "print the raw server response")
	if err := fs.Parse(args); err != nil {
		return err
	}
	input := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if input == "" {
		return errors.New("input is required")
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	core, err := c.newCore(cfg, stderrLogger(c.stderr, cfg))
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, stop := signalContext()
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	if err := core.Init(ctx); err != nil {
		return err
	}

	result := core.SendMessage(ctx, input)
	if !result.Success {
		if result.Err != nil {
			return result.Err
		}
		return errors.New(result.Error)
	}
	switch result.Kind {
	case session.InputApp:
		fmt.Fprintf(c.stdout, "launched %s\n", result.Target)
		return nil
	case session.InputShell:
		fmt.Fprintf(c.stdout, "running in %s\n", result.Target)
		return nil
	}
	if *raw {
		_, err := fmt.Fprintln(c.stdout, strings.TrimSpace(string(result.Response)))
		return err
	}
	if reply := replyText(result.Response, core.Messages()); reply != "" {
		fmt.Fprintln(c.stdout, reply)
	}
	return nil
}

// replyText prefers the assistant message returned by the POST and falls
// back to the newest assistant message in the list.
func replyText(response json.RawMessage, messages []types.Message) string {
	if len(response) > 0 {
		var msg types.Message
		if err := json.Unmarshal(response, &msg); err == nil && msg.Info.Role == types.RoleAssistant {
			if text := msg.Text(); text != "" {
				return text
			}
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Info.Role == types.RoleAssistant {
			return messages[i].Text()
		}
	}
	return ""
}

type ResetCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig configLoader
	newCore    coreFactory
}

func NewResetCommand(stdout, stderr io.Writer, loadConfig configLoader, newCore coreFactory) *ResetCommand {
	return &ResetCommand{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: loadConfig,
		newCore:    newCore,
	}
}

func (c *ResetCommand) Run(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	timeout := fs.Duration("timeout", time.Minute, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	core, err := c.newCore(cfg, stderrLogger(c.stderr, cfg))
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	if err := core.Init(ctx); err != nil {
		return err
	}
	result := core.Reset(ctx)
	if !result.Success {
		if result.Err != nil {
			return result.Err
		}
		return errors.New(result.Error)
	}
	if result.Session != nil {
		fmt.Fprintln(c.stdout, result.Session.ID)
	}
	return nil
}
