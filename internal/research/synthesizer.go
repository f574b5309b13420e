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

// Synthesizer turns the ledger into the final answer
type Synthesizer struct {
	gen     ports.TextGenerator
	prompts *ai.PromptManager
	logger  *internal.Logger
}

// NewSynthesizer creates a synthesizer using the smart profile
func NewSynthesizer(gen ports.TextGenerator, prompts *ai.PromptManager) *Synthesizer {
	return &Synthesizer{
		gen:     gen,
		prompts: prompts,
		logger:  internal.DefaultLogger.With("Synthesizer"),
	}
}

// InsufficientEvidenceAnswer is returned without a model call when the
// ledger is empty.
func InsufficientEvidenceAnswer(question string) string {
	return fmt.Sprintf("Insufficient evidence: no research capability produced evidence for %q, so a grounded answer cannot be given. "+
		"Try asking about the covered companies' filings, recent news, or market data.", question)
}

// Synthesize grounds the answer in records and appends the list of
// capabilities that contributed.
func (s *Synthesizer) Synthesize(ctx context.Context, req domain.ResearchRequest, records []domain.EvidenceRecord) (string, error) {
	if len(records) == 0 {
		s.logger.Info("empty ledger, reporting insufficient evidence")
		return InsufficientEvidenceAnswer(req.OriginalQuestion), nil
	}

	prompt, err := s.prompts.RenderPrompt(ai.PromptSynthesize, map[string]string{
		"QUESTION": req.OriginalQuestion,
		"EVIDENCE": FormatEvidence(records),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to render synthesis prompt")
	}

	text, err := answer(ctx, s.gen, ports.ProfileSmart, ports.OpSynthesis, prompt)
	if err != nil {
		return "", err
	}

	var contributed domain.CapabilitySet
	for _, r := range records {
		contributed = contributed.With(r.Capability)
	}
	return text + "\n\n" + ContributionFooter(contributed), nil
}

// FormatEvidence renders ledger records for the synthesis prompt
func FormatEvidence(records []domain.EvidenceRecord) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. Sub-question: %s\n   Capability: %s\n   Answer: %s", i+1, r.Question, CapabilityLabel(r.Capability), r.Answer)
		if len(r.Sources) > 0 {
			refs := make([]string, len(r.Sources))
			for j, src := range r.Sources {
				refs[j] = src.String()
			}
			fmt.Fprintf(&b, "\n   Sources: %s", strings.Join(refs, "; "))
		}
	}
	return b.String()
}

// CapabilityLabel is the human-readable name of a capability
func CapabilityLabel(c domain.Capability) string {
	switch c {
	case domain.CapabilityDocument:
		return "Document filings"
	case domain.CapabilityWeb:
		return "Web news search"
	case domain.CapabilityMarket:
		return "Market data"
	default:
		return c.String()
	}
}

// ContributionFooter lists contributing capabilities in priority order
func ContributionFooter(caps domain.CapabilitySet) string {
	labels := make([]string, 0, caps.Len())
	for _, c := range caps.Slice() {
		labels = append(labels, CapabilityLabel(c))
	}
	return "Evidence gathered via: " + strings.Join(labels, ", ")
}
