package research

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuestion is returned for a blank research question
var ErrEmptyQuestion = errors.New("question cannot be empty")

// ResearchRequest is the immutable input of a run
type ResearchRequest struct {
	OriginalQuestion string `json:"originalQuestion"`
}

// NewResearchRequest trims and validates the question
func NewResearchRequest(question string) (ResearchRequest, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return ResearchRequest{}, ErrEmptyQuestion
	}
	return ResearchRequest{OriginalQuestion: q}, nil
}

// SubQuestion is an atomic question answered by exactly one capability
type SubQuestion struct {
	Question   string     `json:"question"`
	Capability Capability `json:"capability"`
}

// DocumentSource is the provenance of one retrieved filing passage
type DocumentSource struct {
	Company string `json:"company"`
	Year    int    `json:"year"`
	Page    int    `json:"page"`
}

// MarketSource is the provenance of one market-data quote
type MarketSource struct {
	Ticker     string  `json:"ticker"`
	Price      float64 `json:"price"`
	SourceName string  `json:"sourceName"`
}

// Source is a capability-specific provenance entry. Exactly one field is set.
type Source struct {
	Document *DocumentSource `json:"document,omitempty"`
	Market   *MarketSource   `json:"market,omitempty"`
}

// DocumentRef builds a document source
func DocumentRef(company string, year, page int) Source {
	return Source{Document: &DocumentSource{Company: company, Year: year, Page: page}}
}

// MarketRef builds a market source
func MarketRef(ticker string, price float64, sourceName string) Source {
	return Source{Market: &MarketSource{Ticker: ticker, Price: price, SourceName: sourceName}}
}

func (s Source) String() string {
	switch {
	case s.Document != nil:
		return fmt.Sprintf("%s %d p.%d", s.Document.Company, s.Document.Year, s.Document.Page)
	case s.Market != nil:
		return fmt.Sprintf("%s @ %.2f (%s)", s.Market.Ticker, s.Market.Price, s.Market.SourceName)
	default:
		return ""
	}
}

func (s Source) clone() Source {
	var out Source
	if s.Document != nil {
		d := *s.Document
		out.Document = &d
	}
	if s.Market != nil {
		m := *s.Market
		out.Market = &m
	}
	return out
}

// EvidenceRecord is the answer to one sub-question and its provenance
type EvidenceRecord struct {
	Question   string     `json:"question"`
	Capability Capability `json:"capability"`
	Answer     string     `json:"answer"`
	Sources    []Source   `json:"sources,omitempty"`
}

func (r EvidenceRecord) clone() EvidenceRecord {
	out := r
	if r.Sources != nil {
		out.Sources = make([]Source, len(r.Sources))
		for i, s := range r.Sources {
			out.Sources[i] = s.clone()
		}
	}
	return out
}

// Plan is the planner's output
type Plan struct {
	SubQuestions         []SubQuestion `json:"subQuestions"`
	RequiredCapabilities CapabilitySet `json:"requiredCapabilities"`
}

// NewPlan derives the required capabilities as the union over subs
func NewPlan(subs []SubQuestion) Plan {
	var required CapabilitySet
	for _, sq := range subs {
		required = required.With(sq.Capability)
	}
	return Plan{
		SubQuestions:         append([]SubQuestion(nil), subs...),
		RequiredCapabilities: required,
	}
}
