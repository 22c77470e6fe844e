// wardenctl is the offline audit companion: it verifies decision trail
// partitions and prints decision trees without touching a running
// governance process. Everything works directly from the JSONL files.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "tree":
		return runTreeCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "wardenctl - offline decision trail tooling")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  wardenctl verify -dir <auditdir> -project <p> [-date YYYY-MM-DD] [-json]")
	fmt.Fprintln(w, "      Recompute entry checksums for one date (or all dates) and report.")
	fmt.Fprintln(w, "  wardenctl tree -dir <auditdir> -project <p> -task <id>")
	fmt.Fprintln(w, "      Print the decision forest recorded for a task.")
}
