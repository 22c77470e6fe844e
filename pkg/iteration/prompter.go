package iteration

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConsolePrompter obtains a guardrail choice from an interactive
// terminal. It re-prompts indefinitely on invalid input rather than
// silently defaulting. Only sessions explicitly running in interactive
// mode should use it; autonomous sessions must be configured with a
// fixed policy instead.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsolePrompter reads choices from in and writes the menu to out.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

// Prompt presents the violation and blocks until a valid choice is read.
func (p *ConsolePrompter) Prompt(v *GuardrailViolation) GuardrailChoice {
	fmt.Fprintf(p.out, "\nguardrail violation on task %s: %s\n", v.TaskID, v.Summary)
	if len(v.ChangedFiles) > 0 {
		fmt.Fprintf(p.out, "changed files:\n")
		for _, f := range v.ChangedFiles {
			fmt.Fprintf(p.out, "  %s\n", f)
		}
	}

	for {
		fmt.Fprintf(p.out, "[r]evert changes / [o]verride and continue / [a]bort session: ")
		line, err := p.in.ReadString('\n')
		if err != nil && line == "" {
			// Input stream closed: the safest interactive answer is
			// revert, matching the non-interactive default.
			fmt.Fprintf(p.out, "input closed; reverting\n")
			return ChoiceRevert
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "r", "revert":
			return ChoiceRevert
		case "o", "override":
			return ChoiceOverride
		case "a", "abort":
			return ChoiceAbort
		}
		fmt.Fprintf(p.out, "invalid choice\n")
	}
}
