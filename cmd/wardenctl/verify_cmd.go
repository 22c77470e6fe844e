package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/warden-ai/warden/pkg/audit"
)

// runVerifyCmd implements `wardenctl verify`.
//
// Exit codes:
//
//	0 = every checked entry verified
//	1 = at least one entry failed verification
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir        string
		project    string
		date       string
		jsonOutput bool
	)
	cmd.StringVar(&dir, "dir", "", "Audit base directory (REQUIRED)")
	cmd.StringVar(&project, "project", "", "Project name (REQUIRED)")
	cmd.StringVar(&date, "date", "", "Partition date YYYY-MM-DD (default: all partitions)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output reports as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dir == "" || project == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -dir and -project are required")
		return 2
	}

	dates := []string{date}
	if date == "" {
		var err error
		dates, err = partitionDates(dir, project)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if len(dates) == 0 {
			_, _ = fmt.Fprintf(stderr, "No partitions found for project %s\n", project)
			return 2
		}
	}

	trail := audit.NewTrail(dir, project)
	exit := 0
	var reports []*audit.IntegrityReport
	for _, d := range dates {
		report, err := trail.VerifyIntegrity(d)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: verify %s: %v\n", d, err)
			return 2
		}
		reports = append(reports, report)
		if !report.IntegrityOK {
			exit = 1
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		return exit
	}

	for _, r := range reports {
		status := "OK"
		if !r.IntegrityOK {
			status = "FAILED"
		}
		fmt.Fprintf(stdout, "%s  %s  total=%d valid=%d invalid=%d missing=%d\n",
			r.Date, status, r.Total, r.Valid, r.Invalid, r.MissingChecksum)
		for _, id := range r.InvalidIDs {
			fmt.Fprintf(stdout, "  invalid: %s\n", id)
		}
	}
	return exit
}

// partitionDates lists the dates that have a partition file, in order.
func partitionDates(dir, project string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, project, "decisions_*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	var dates []string
	for _, p := range paths {
		name := filepath.Base(p)
		d := strings.TrimSuffix(strings.TrimPrefix(name, "decisions_"), ".jsonl")
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}
