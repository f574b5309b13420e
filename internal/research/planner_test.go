package research

import (
	"context"
	"fmt"
	"testing"

	"finresearch/ai"
	domain "finresearch/domain/research"
	"finresearch/internal/config"
	"finresearch/internal/errors"
	"finresearch/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		want     []domain.SubQuestion
		required domain.CapabilitySet
	}{
		{
			name:     "single market question",
			content:  `{"subQuestions":[{"question":"What is Microsoft's current stock price?","capability":"MARKET"}]}`,
			want:     []domain.SubQuestion{{Question: "What is Microsoft's current stock price?", Capability: domain.CapabilityMarket}},
			required: domain.NewCapabilitySet(domain.CapabilityMarket),
		},
		{
			name:    "legacy tool tags",
			content: "```json\n{\"subQuestions\":[{\"question\":\"NVDA revenue 2025\",\"tool\":\"RAG\"},{\"question\":\"NVDA price\",\"tool\":\"STOCK\"}],\"requiredTools\":[\"RAG\",\"STOCK\"]}\n```",
			want: []domain.SubQuestion{
				{Question: "NVDA revenue 2025", Capability: domain.CapabilityDocument},
				{Question: "NVDA price", Capability: domain.CapabilityMarket},
			},
			required: domain.NewCapabilitySet(domain.CapabilityDocument, domain.CapabilityMarket),
		},
		{
			name:    "multi capability item is split",
			content: `{"subQuestions":[{"question":"AMD outlook","capability":["WEB","DOCUMENT"]}]}`,
			want: []domain.SubQuestion{
				{Question: "AMD outlook", Capability: domain.CapabilityWeb},
				{Question: "AMD outlook", Capability: domain.CapabilityDocument},
			},
			required: domain.NewCapabilitySet(domain.CapabilityDocument, domain.CapabilityWeb),
		},
		{
			name:     "duplicates removed",
			content:  `{"subQuestions":[{"question":"AMD news","capability":"WEB"},{"question":" AMD news ","capability":"web"}]}`,
			want:     []domain.SubQuestion{{Question: "AMD news", Capability: domain.CapabilityWeb}},
			required: domain.NewCapabilitySet(domain.CapabilityWeb),
		},
		{
			name:    "empty plan",
			content: `{"subQuestions":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParsePlan(tt.content)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, plan.SubQuestions)
			} else {
				assert.Equal(t, tt.want, plan.SubQuestions)
			}
			assert.Equal(t, tt.required, plan.RequiredCapabilities)
		})
	}
}

func TestParsePlanRejectsMalformed(t *testing.T) {
	bad := map[string]string{
		"not json":            "I would first look at the filings.",
		"missing field":       `{"plan": []}`,
		"unknown capability":  `{"subQuestions":[{"question":"q","capability":"SQL"}]}`,
		"empty capability":    `{"subQuestions":[{"question":"q","capability":[]}]}`,
		"no capability":       `{"subQuestions":[{"question":"q"}]}`,
		"blank question":      `{"subQuestions":[{"question":"  ","capability":"WEB"}]}`,
		"capability a number": `{"subQuestions":[{"question":"q","capability":3}]}`,
	}

	for name, content := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlan(content)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodePlanningError), "got %v", err)
		})
	}
}

func TestPlannerUsesSmartProfile(t *testing.T) {
	gen := newScriptedGenerator().with(ports.OpPlan, `{"subQuestions":[{"question":"MSFT price now","capability":"MARKET"}]}`)
	p := NewPlanner(gen, ai.NewPromptManager(""), config.DefaultCatalog())

	plan, err := p.Plan(context.Background(), domain.ResearchRequest{OriginalQuestion: "How is Microsoft trading?"})
	require.NoError(t, err)
	assert.Len(t, plan.SubQuestions, 1)

	call, ok := gen.lastCall(ports.OpPlan)
	require.True(t, ok)
	assert.Equal(t, ports.ProfileSmart, call.Profile)
	assert.True(t, call.JSON)
	require.Len(t, call.Messages, 2)
	assert.Contains(t, call.Messages[0].Content, "NVIDIA, AMD, Microsoft")
	assert.Contains(t, call.Messages[0].Content, "2024, 2025")
	assert.Equal(t, "How is Microsoft trading?", call.Messages[1].Content)
}

func TestPlannerOutageIsCollaboratorUnavailable(t *testing.T) {
	gen := newScriptedGenerator().failing(ports.OpPlan, fmt.Errorf("503 from provider"))
	p := NewPlanner(gen, ai.NewPromptManager(""), config.DefaultCatalog())

	_, err := p.Plan(context.Background(), domain.ResearchRequest{OriginalQuestion: "q"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeCollaboratorUnavailable))
	assert.False(t, errors.HasCode(err, errors.CodePlanningError))
}
