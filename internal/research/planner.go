package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"finresearch/ai"
	domain "finresearch/domain/research"
	"finresearch/internal"
	"finresearch/internal/config"
	"finresearch/internal/errors"
	"finresearch/ports"
)

// Planner decomposes a question into single-capability sub-questions
type Planner struct {
	gen     ports.TextGenerator
	prompts *ai.PromptManager
	catalog *config.Catalog
	logger  *internal.Logger
}

// NewPlanner creates a planner using the smart profile
func NewPlanner(gen ports.TextGenerator, prompts *ai.PromptManager, catalog *config.Catalog) *Planner {
	return &Planner{
		gen:     gen,
		prompts: prompts,
		catalog: catalog,
		logger:  internal.DefaultLogger.With("Planner"),
	}
}

// capabilityTags accepts a single tag or a list of tags
type capabilityTags []string

func (c *capabilityTags) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*c = capabilityTags{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("capability must be a string or list of strings")
	}
	*c = many
	return nil
}

type rawSubQuestion struct {
	Question   string         `json:"question"`
	Capability capabilityTags `json:"capability"`
	Tool       capabilityTags `json:"tool"`
}

type rawPlan struct {
	SubQuestions *[]rawSubQuestion `json:"subQuestions"`
}

// Plan asks the model for a plan and validates it. Malformed output is a
// PlanningError; a failed model call is CollaboratorUnavailable.
func (p *Planner) Plan(ctx context.Context, req domain.ResearchRequest) (domain.Plan, error) {
	system, err := p.prompts.RenderPrompt(ai.PromptPlan, map[string]string{
		"ENTITIES": strings.Join(p.catalog.EntityNames(), ", "),
		"YEARS":    joinYears(p.catalog.AllYears()),
	})
	if err != nil {
		return domain.Plan{}, errors.Wrap(err, "failed to render plan prompt")
	}

	resp, err := p.gen.Generate(ctx, ports.GenerateRequest{
		Profile:   ports.ProfileSmart,
		Operation: ports.OpPlan,
		JSON:      true,
		Messages: []ports.Message{
			{Role: ports.RoleSystem, Content: system},
			{Role: ports.RoleUser, Content: req.OriginalQuestion},
		},
	})
	if err != nil {
		return domain.Plan{}, errors.CollaboratorUnavailable("text generation", err)
	}

	plan, err := ParsePlan(resp.Content)
	if err != nil {
		p.logger.Warn("rejected plan output: %v", err)
		return domain.Plan{}, err
	}

	p.logger.Info("planned %d sub-questions, required %s", len(plan.SubQuestions), plan.RequiredCapabilities)
	return plan, nil
}

// ParsePlan validates planner output. Items tagged with several capabilities
// are split into one sub-question per capability; exact duplicates are dropped.
func ParsePlan(content string) (domain.Plan, error) {
	raw, err := ai.DecodeJSON[rawPlan](content)
	if err != nil {
		return domain.Plan{}, errors.PlanningError("planner output is not valid JSON", err)
	}
	if raw.SubQuestions == nil {
		return domain.Plan{}, errors.PlanningError("planner output has no subQuestions field", nil)
	}

	type key struct {
		question   string
		capability domain.Capability
	}
	seen := make(map[key]bool)
	var subs []domain.SubQuestion

	for i, item := range *raw.SubQuestions {
		question := strings.TrimSpace(item.Question)
		if question == "" {
			return domain.Plan{}, errors.PlanningError(fmt.Sprintf("sub-question %d has no text", i+1), nil)
		}

		tags := item.Capability
		if len(tags) == 0 {
			tags = item.Tool
		}
		if len(tags) == 0 {
			return domain.Plan{}, errors.PlanningError(fmt.Sprintf("sub-question %d has no capability", i+1), nil)
		}

		for _, tag := range tags {
			c, err := domain.ParseCapability(tag)
			if err != nil {
				return domain.Plan{}, errors.PlanningError(fmt.Sprintf("sub-question %d", i+1), err)
			}
			k := key{question, c}
			if seen[k] {
				continue
			}
			seen[k] = true
			subs = append(subs, domain.SubQuestion{Question: question, Capability: c})
		}
	}

	return domain.NewPlan(subs), nil
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ", ")
}
