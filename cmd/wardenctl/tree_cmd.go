package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/warden-ai/warden/pkg/audit"
)

// runTreeCmd implements `wardenctl tree`.
func runTreeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("tree", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir     string
		project string
		task    string
	)
	cmd.StringVar(&dir, "dir", "", "Audit base directory (REQUIRED)")
	cmd.StringVar(&project, "project", "", "Project name (REQUIRED)")
	cmd.StringVar(&task, "task", "", "Task id (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dir == "" || project == "" || task == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -dir, -project and -task are required")
		return 2
	}

	trail := audit.NewTrail(dir, project)
	tree, err := trail.BuildDecisionTree(task)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	fmt.Fprintf(stdout, "task %s: %d decision(s)\n", tree.TaskID, tree.DecisionCount)
	for _, root := range tree.Roots {
		printNode(stdout, root, 0)
	}
	return 0
}

func printNode(w io.Writer, n *audit.TreeNode, depth int) {
	marker := ""
	if n.CycleBroken {
		marker = "  [cycle broken]"
	}
	fmt.Fprintf(w, "%s%s  %s  %s (%s)%s\n",
		strings.Repeat("  ", depth),
		n.Entry.Timestamp.Format("15:04:05"),
		n.Entry.ID,
		n.Entry.Decision,
		n.Entry.Type,
		marker)
	for _, child := range n.Children {
		printNode(w, child, depth+1)
	}
}
