package research

import (
	"context"
	"strings"

	domain "finresearch/domain/research"
	"finresearch/internal/errors"
	"finresearch/ports"
)

// Stage answers every sub-question of one capability. It reads the run
// through a view and returns the records to append; sub-questions are
// handled one at a time in plan order.
type Stage interface {
	Capability() domain.Capability
	Execute(ctx context.Context, run domain.RunView) (domain.StageDelta, error)
}

// answer runs one grounded-answer generation with a single system message
func answer(ctx context.Context, gen ports.TextGenerator, profile ports.Profile, op ports.Operation, prompt string) (string, error) {
	resp, err := gen.Generate(ctx, ports.GenerateRequest{
		Profile:   profile,
		Operation: op,
		Messages:  []ports.Message{{Role: ports.RoleSystem, Content: prompt}},
	})
	if err != nil {
		return "", errors.CollaboratorUnavailable("text generation", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
