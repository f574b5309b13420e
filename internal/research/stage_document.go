package research

import (
	"context"
	"fmt"
	"strings"

	"finresearch/ai"
	domain "finresearch/domain/research"
	"finresearch/internal"
	"finresearch/internal/errors"
	"finresearch/ports"
)

// DefaultTopK is the number of passages fetched per (entity, year) pair
const DefaultTopK = 3

// DocumentStage answers sub-questions from the indexed filings
type DocumentStage struct {
	gen       ports.TextGenerator
	retriever ports.Retriever
	filters   *FilterExtractor
	prompts   *ai.PromptManager
	topK      int
	logger    *internal.Logger
}

// NewDocumentStage creates the document-evidence stage
func NewDocumentStage(gen ports.TextGenerator, retriever ports.Retriever, filters *FilterExtractor, prompts *ai.PromptManager, topK int) *DocumentStage {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &DocumentStage{
		gen:       gen,
		retriever: retriever,
		filters:   filters,
		prompts:   prompts,
		topK:      topK,
		logger:    internal.DefaultLogger.With("DocumentStage"),
	}
}

func (s *DocumentStage) Capability() domain.Capability {
	return domain.CapabilityDocument
}

// Execute fails the whole stage on a retrieval or generation error.
func (s *DocumentStage) Execute(ctx context.Context, run domain.RunView) (domain.StageDelta, error) {
	delta := domain.StageDelta{Capability: domain.CapabilityDocument}

	for _, sq := range run.SubQuestionsFor(domain.CapabilityDocument) {
		record, err := s.answerOne(ctx, sq)
		if err != nil {
			return domain.StageDelta{}, err
		}
		delta.Records = append(delta.Records, record)
	}
	return delta, nil
}

func (s *DocumentStage) answerOne(ctx context.Context, sq domain.SubQuestion) (domain.EvidenceRecord, error) {
	fr := s.filters.Extract(ctx, sq.Question)
	f := fr.Filters

	var passages []ports.Passage
	for _, company := range f.Companies {
		for _, year := range f.Years {
			found, err := s.retriever.Search(ctx, f.SearchQuery, s.topK, ports.RetrievalFilter{Entity: company, Period: year})
			if err != nil {
				return domain.EvidenceRecord{}, errors.CollaboratorUnavailable("document retrieval", err)
			}
			passages = append(passages, found...)
		}
	}
	s.logger.Info("found %d passages for %q (%d companies x %d years, filters %s)",
		len(passages), sq.Question, len(f.Companies), len(f.Years), fr.Source)

	prompt, err := s.prompts.RenderPrompt(ai.PromptDocumentAnswer, map[string]string{
		"QUESTION": sq.Question,
		"EXCERPTS": FormatPassages(passages),
	})
	if err != nil {
		return domain.EvidenceRecord{}, errors.Wrap(err, "failed to render document prompt")
	}

	text, err := answer(ctx, s.gen, ports.ProfileFast, ports.OpDocumentAnswer, prompt)
	if err != nil {
		return domain.EvidenceRecord{}, err
	}

	var sources []domain.Source
	for _, p := range passages {
		sources = append(sources, domain.DocumentRef(p.Entity, p.Period, p.Page))
	}

	return domain.EvidenceRecord{
		Question:   sq.Question,
		Capability: domain.CapabilityDocument,
		Answer:     text,
		Sources:    sources,
	}, nil
}

// FormatPassages numbers passages with their provenance for the answer prompt
func FormatPassages(passages []ports.Passage) string {
	if len(passages) == 0 {
		return "(no excerpts found)"
	}
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s %d (Page %d):\n%s", i+1, p.Entity, p.Period, p.Page, strings.TrimSpace(p.Text))
	}
	return b.String()
}
