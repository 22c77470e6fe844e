package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Iterator streams entries from one date partition lazily. It is finite
// and restartable: creating a new iterator re-reads the partition from
// the start. Callers must Close it when done.
type Iterator struct {
	file    *os.File
	scanner *bufio.Scanner
	entry   *DecisionEntry
	err     error
}

// DecisionsForDate opens a lazy iterator over the partition for a date
// in YYYY-MM-DD form. A missing partition yields an empty iterator, not
// an error.
func (t *Trail) DecisionsForDate(date string) (*Iterator, error) {
	f, err := os.Open(t.partitionPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return &Iterator{}, nil
		}
		return nil, fmt.Errorf("audit: open partition %s: %w", date, err)
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Iterator{file: f, scanner: sc}, nil
}

// Next advances to the next entry, returning false at end of partition
// or on error.
func (it *Iterator) Next() bool {
	if it.scanner == nil || it.err != nil {
		return false
	}
	for it.scanner.Scan() {
		line := it.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e DecisionEntry
		if err := json.Unmarshal(line, &e); err != nil {
			it.err = fmt.Errorf("audit: parse record: %w", err)
			return false
		}
		it.entry = &e
		return true
	}
	it.err = it.scanner.Err()
	return false
}

// Entry returns the current entry after a successful Next.
func (it *Iterator) Entry() *DecisionEntry { return it.entry }

// Err reports any error that terminated iteration.
func (it *Iterator) Err() error { return it.err }

// Close releases the underlying partition file.
func (it *Iterator) Close() error {
	if it.file == nil {
		return nil
	}
	return it.file.Close()
}

// readPartition loads all entries from one partition file eagerly.
func readPartition(path string) ([]*DecisionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []*DecisionEntry
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e DecisionEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("audit: parse record in %s: %w", path, err)
		}
		out = append(out, &e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("audit: read %s: %w", path, err)
	}
	return out, nil
}
