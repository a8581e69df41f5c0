package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompter collects target names interactively. Names accumulate one
// per line; "yes" or "ok" starts stalking with what was gathered.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminalPrompter wires the prompter to the process terminal.
func NewTerminalPrompter() *TerminalPrompter {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "stdin is not a terminal; target input may misbehave")
	}
	return &TerminalPrompter{In: os.Stdin, Out: os.Stdout}
}

func (p *TerminalPrompter) Targets(region string) ([]string, error) {
	scanner := bufio.NewScanner(p.In)
	var names []string
	fmt.Fprintf(p.Out, "Input a summoner on %s to stalk, one per line.\n", region)
	for {
		if len(names) > 0 {
			fmt.Fprintf(p.Out, "Targets so far: %s. Add another, or type 'yes'/'ok' to start:\n", strings.Join(names, ", "))
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			if len(names) > 0 {
				return names, nil
			}
			return nil, io.EOF
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "yes") || strings.Contains(lower, "ok") {
			if len(names) > 0 {
				return names, nil
			}
			fmt.Fprintln(p.Out, "Need at least one target first.")
			continue
		}
		names = append(names, line)
	}
}
