package meta

import (
	"fmt"

	"gometa/domain/core"
)

// Study is a research report: a citation plus the outcomes it measured.
// A study owns its outcomes exclusively; an outcome belongs to one study.
type Study struct {
	Note     string
	Citation string
	Outcomes []*Outcome
}

// NewStudy creates a study holding the given outcomes.
func NewStudy(note, citation string, outcomes ...*Outcome) *Study {
	return &Study{
		Note:     note,
		Citation: citation,
		Outcomes: outcomes,
	}
}

// AppendOutcome adds an outcome to the study.
func (s *Study) AppendOutcome(o *Outcome) {
	s.Outcomes = append(s.Outcomes, o)
}

// OutcomeByID returns the outcome with the given identifier.
func (s *Study) OutcomeByID(id core.OutcomeID) (*Outcome, error) {
	for _, o := range s.Outcomes {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", core.ErrOutcomeNotFound, id)
}

// OutcomesByLabel returns the study's outcomes carrying the given label.
func (s *Study) OutcomesByLabel(label string) []*Outcome {
	var matched []*Outcome
	for _, o := range s.Outcomes {
		if o.Label == label {
			matched = append(matched, o)
		}
	}
	return matched
}

// RemoveOutcome returns a new study without the identified outcome. The
// receiver is never modified; the remaining outcome records are shared.
func (s *Study) RemoveOutcome(id core.OutcomeID) (*Study, error) {
	for i, o := range s.Outcomes {
		if o.ID == id {
			rest := make([]*Outcome, 0, len(s.Outcomes)-1)
			rest = append(rest, s.Outcomes[:i]...)
			rest = append(rest, s.Outcomes[i+1:]...)
			return &Study{Note: s.Note, Citation: s.Citation, Outcomes: rest}, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", core.ErrOutcomeNotFound, id)
}

// Copy returns a fully independent copy; outcome records are duplicated,
// so mutating the copy never affects the original.
func (s *Study) Copy() *Study {
	outcomes := make([]*Outcome, len(s.Outcomes))
	for i, o := range s.Outcomes {
		outcomes[i] = o.Copy()
	}
	return &Study{Note: s.Note, Citation: s.Citation, Outcomes: outcomes}
}

func (s *Study) String() string {
	return fmt.Sprintf("Study(citation=%q, outcomes=%d)", s.Citation, len(s.Outcomes))
}
