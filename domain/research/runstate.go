package research

import (
	"fmt"
	"time"
)

// RunState is the working state of one research run. It is owned by the
// driver; stages see it through a RunView and hand back a StageDelta.
type RunState struct {
	RunID                string          `json:"runId"`
	Request              ResearchRequest `json:"request"`
	SubQuestions         []SubQuestion   `json:"subQuestions"`
	RequiredCapabilities CapabilitySet   `json:"requiredCapabilities"`
	ExecutedCapabilities []Capability    `json:"executedCapabilities"`
	EvidenceLedger       Ledger          `json:"evidenceLedger"`
	FinalAnswer          string          `json:"finalAnswer,omitempty"`
	Path                 []State         `json:"path"`
	StartedAt            time.Time       `json:"startedAt"`
	CompletedAt          time.Time       `json:"completedAt"`
	DurationMs           int64           `json:"durationMs"`
}

// StageDelta is what a capability stage returns for the driver to merge
type StageDelta struct {
	Capability Capability
	Records    []EvidenceRecord
}

// NewRunState starts a run in the Classify state
func NewRunState(runID string, req ResearchRequest, now time.Time) *RunState {
	return &RunState{
		RunID:                runID,
		Request:              req,
		SubQuestions:         []SubQuestion{},
		ExecutedCapabilities: []Capability{},
		Path:                 []State{StateClassify},
		StartedAt:            now,
	}
}

// ApplyPlan records the planner output
func (s *RunState) ApplyPlan(p Plan) {
	s.SubQuestions = append([]SubQuestion{}, p.SubQuestions...)
	s.RequiredCapabilities = p.RequiredCapabilities
}

// HasExecuted reports whether the stage for c already ran
func (s *RunState) HasExecuted(c Capability) bool {
	for _, e := range s.ExecutedCapabilities {
		if e == c {
			return true
		}
	}
	return false
}

// Enter appends a state to the traversed path
func (s *RunState) Enter(st State) {
	s.Path = append(s.Path, st)
}

// Merge appends a stage's records and marks its capability executed.
// A capability can be merged once; every record must carry that capability.
func (s *RunState) Merge(d StageDelta) error {
	if !d.Capability.Valid() {
		return fmt.Errorf("invalid capability %d in stage delta", int(d.Capability))
	}
	if s.HasExecuted(d.Capability) {
		return fmt.Errorf("%s stage already executed", d.Capability)
	}
	for i, r := range d.Records {
		if r.Capability != d.Capability {
			return fmt.Errorf("%s stage returned record %d tagged %s", d.Capability, i, r.Capability)
		}
	}
	s.EvidenceLedger.Append(d.Records...)
	s.ExecutedCapabilities = append(s.ExecutedCapabilities, d.Capability)
	return nil
}

// Complete stores the final answer and timing
func (s *RunState) Complete(answer string, now time.Time) {
	s.FinalAnswer = answer
	s.CompletedAt = now
	s.DurationMs = now.Sub(s.StartedAt).Milliseconds()
}

// View returns a read-only view for stages
func (s *RunState) View() RunView {
	return RunView{state: s}
}

// RunView exposes copies of the run state's contents
type RunView struct {
	state *RunState
}

func (v RunView) RunID() string {
	return v.state.RunID
}

func (v RunView) Request() ResearchRequest {
	return v.state.Request
}

// SubQuestionsFor returns the sub-questions tagged c, in plan order
func (v RunView) SubQuestionsFor(c Capability) []SubQuestion {
	var out []SubQuestion
	for _, sq := range v.state.SubQuestions {
		if sq.Capability == c {
			out = append(out, sq)
		}
	}
	return out
}

// Evidence returns a copy of the ledger
func (v RunView) Evidence() []EvidenceRecord {
	return v.state.EvidenceLedger.Records()
}

func (v RunView) Executed() []Capability {
	return append([]Capability{}, v.state.ExecutedCapabilities...)
}
