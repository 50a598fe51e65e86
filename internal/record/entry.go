package record

// Entry is the exported view of a record: {agent, score, text}.
type Entry struct {
	Agent string  `json:"agent"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// Export returns the record's audit entry. The record must be scored.
func (r *Record) Export() (Entry, error) {
	score, err := r.MustScore()
	if err != nil {
		return Entry{}, err
	}
	return Entry{Agent: r.Agent(), Score: score, Text: r.text}, nil
}

// ExportAll exports records in order.
func ExportAll(records []*Record) ([]Entry, error) {
	out := make([]Entry, 0, len(records))
	for _, r := range records {
		e, err := r.Export()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
