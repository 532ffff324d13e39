package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"vibeshell/internal/types"
)

type StatusCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig configLoader
	newClient  clientFactory
}

func NewStatusCommand(stdout, stderr io.Writer, loadConfig configLoader, newClient clientFactory) *StatusCommand {
	return &StatusCommand{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: loadConfig,
		newClient:  newClient,
	}
}

func (c *StatusCommand) Run(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	all := fs.Bool("all", false, "list every server session, not only the shell's")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	client, err := c.newClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	defer cancel()

	healthy, healthErr := client.Health(ctx)
	fmt.Fprintf(c.stdout, "server:  %s\n", client.BaseURL())
	if healthErr != nil {
		fmt.Fprintf(c.stdout, "healthy: false (%v)\n", healthErr)
		return nil
	}
	fmt.Fprintf(c.stdout, "healthy: %t\n", healthy)
	if !healthy {
		return nil
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return err
	}
	title := cfg.SessionTitle()
	var shown []types.Session
	for _, s := range sessions {
		if *all || s.HasTitle(title) {
			shown = append(shown, s)
		}
	}
	fmt.Fprintf(c.stdout, "title:   %s (%d matching)\n\n", title, countTitled(sessions, title))
	printSessions(c.stdout, shown)
	return nil
}

func countTitled(sessions []types.Session, title string) int {
	n := 0
	for i := range sessions {
		if sessions[i].HasTitle(title) {
			n++
		}
	}
	return n
}

func printSessions(output io.Writer, sessions []types.Session) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTITLE\tUPDATED")
	for _, s := range sessions {
		updated := "-"
		if s.Time != nil && !s.Time.Updated.IsZero() {
			updated = s.Time.Updated.Local().Format(time.DateTime)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", s.ID, s.Title, updated)
	}
	_ = writer.Flush()
}
