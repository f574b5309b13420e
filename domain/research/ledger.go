package research

import "encoding/json"

// Ledger is the append-only, ordered sequence of evidence records.
// Records are copied in and out so appended entries cannot be changed.
type Ledger struct {
	records []EvidenceRecord
}

// Append adds records at the end
func (l *Ledger) Append(records ...EvidenceRecord) {
	if len(records) == 0 {
		return
	}
	// three-index slice: copies of a Ledger value never share appended storage
	next := l.records[:len(l.records):len(l.records)]
	for _, r := range records {
		next = append(next, r.clone())
	}
	l.records = next
}

func (l Ledger) Len() int {
	return len(l.records)
}

// Records returns a copy of all records in append order
func (l Ledger) Records() []EvidenceRecord {
	out := make([]EvidenceRecord, len(l.records))
	for i, r := range l.records {
		out[i] = r.clone()
	}
	return out
}

// ByCapability returns copies of the records produced by c
func (l Ledger) ByCapability(c Capability) []EvidenceRecord {
	var out []EvidenceRecord
	for _, r := range l.records {
		if r.Capability == c {
			out = append(out, r.clone())
		}
	}
	return out
}

// Capabilities returns the set of capabilities that contributed records
func (l Ledger) Capabilities() CapabilitySet {
	var s CapabilitySet
	for _, r := range l.records {
		s = s.With(r.Capability)
	}
	return s
}

func (l Ledger) MarshalJSON() ([]byte, error) {
	if l.records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.records)
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var records []EvidenceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	l.records = nil
	l.Append(records...)
	return nil
}
