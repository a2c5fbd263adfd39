package commands

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/opswatch/coalmine/cmd/coalmine-cli/client"
)

// newConsoleCmd opens an interactive REPL against one server, so an operator
// can issue several commands without paying the auth/config resolution cost
// each time.
func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Start an interactive session against the configured server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runConsole(c)
		},
	}
}

func runConsole(c *client.Client) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "coalmine> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("starting console: %w", err)
	}
	defer rl.Close()

	fmt.Println(`coalmine-cli console. Type "help" for commands, "exit" to quit.`)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if line == "help" {
			printConsoleHelp()
			continue
		}

		if err := dispatchConsoleLine(c, line); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func printConsoleHelp() {
	fmt.Println(`commands: get|list|trigger|pause|unpause|delete <key>=<value> ...
example:  trigger id=abcd1234 comment="checked in manually"
example:  list verbose=true paused=false`)
}

// dispatchConsoleLine parses "command key=value key=value ..." and issues
// the call through the same client every other subcommand uses.
func dispatchConsoleLine(c *client.Client, line string) error {
	fields := splitConsoleLine(line)
	if len(fields) == 0 {
		return nil
	}
	command := fields[0]

	q := url.Values{}
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return fmt.Errorf("malformed argument %q, expected key=value", f)
		}
		q.Add(key, strings.Trim(value, `"`))
	}

	resp, err := c.Call(command, q)
	if err != nil {
		return err
	}
	printResponse(resp)
	return nil
}

// splitConsoleLine is a small whitespace tokenizer that keeps double-quoted
// spans intact, so comment="checked in" survives as one field.
func splitConsoleLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ' ' && !inQuotes:
			if current.Len() > 0 {
				fields = append(fields, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		fields = append(fields, current.String())
	}
	return fields
}
