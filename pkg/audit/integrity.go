package audit

// IntegrityReport is the result of verifying one date partition.
type IntegrityReport struct {
	Date            string   `json:"date"`
	Total           int      `json:"total"`
	Valid           int      `json:"valid"`
	Invalid         int      `json:"invalid"`
	MissingChecksum int      `json:"missing_checksum"`
	InvalidIDs      []string `json:"invalid_ids,omitempty"`

	// IntegrityOK is true when no entry failed checksum verification.
	// Integrity failures are surfaced, never auto-corrected.
	IntegrityOK bool `json:"integrity_ok"`
}

// VerifyIntegrity recomputes every entry checksum in the partition for a
// date and reports valid/invalid/missing counts.
func (t *Trail) VerifyIntegrity(date string) (*IntegrityReport, error) {
	it, err := t.DecisionsForDate(date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	report := &IntegrityReport{Date: date}
	for it.Next() {
		e := it.Entry()
		report.Total++
		if e.Checksum == "" {
			report.MissingChecksum++
			continue
		}
		ok, err := e.VerifyChecksum()
		if err != nil {
			return nil, err
		}
		if ok {
			report.Valid++
		} else {
			report.Invalid++
			report.InvalidIDs = append(report.InvalidIDs, e.ID)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	report.IntegrityOK = report.Invalid == 0
	return report, nil
}
