package research

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"finresearch/ai"
	"finresearch/internal"
	"finresearch/internal/config"
	"finresearch/internal/errors"
	"finresearch/ports"
)

// Filters scope document retrieval for one sub-question
type Filters struct {
	Companies   []string `json:"companies"`
	Years       []int    `json:"years"`
	SearchQuery string   `json:"searchQuery"`
}

// FilterSource tells whether filters came from the model or the fallback
type FilterSource string

const (
	FiltersExtracted FilterSource = "extracted"
	FiltersFallback  FilterSource = "fallback"
)

// FilterResult is the outcome of best-effort filter extraction. Err is set
// only on fallback and is never propagated out of the document stage.
type FilterResult struct {
	Filters Filters
	Source  FilterSource
	Err     error
}

// UsedFallback reports whether the default filters were used
func (r FilterResult) UsedFallback() bool {
	return r.Source == FiltersFallback
}

// FilterExtractor derives retrieval filters from sub-question text
type FilterExtractor struct {
	gen     ports.TextGenerator
	prompts *ai.PromptManager
	catalog *config.Catalog
	logger  *internal.Logger
}

// NewFilterExtractor creates a filter extractor
func NewFilterExtractor(gen ports.TextGenerator, prompts *ai.PromptManager, catalog *config.Catalog) *FilterExtractor {
	return &FilterExtractor{
		gen:     gen,
		prompts: prompts,
		catalog: catalog,
		logger:  internal.DefaultLogger.With("FilterExtractor"),
	}
}

// flexYear accepts 2024 or "2024"
type flexYear int

func (y *flexYear) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*y = flexYear(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*y = flexYear(n)
	return nil
}

type rawFilters struct {
	Companies   []string   `json:"companies"`
	Years       []flexYear `json:"years"`
	SearchQuery string     `json:"searchQuery"`
}

// Extract never fails: any error yields the fallback of every known entity
// and year with the raw question as the search string.
func (x *FilterExtractor) Extract(ctx context.Context, question string) FilterResult {
	filters, err := x.extract(ctx, question)
	if err != nil {
		x.logger.Warn("filter extraction fell back to defaults: %v", err)
		return FilterResult{
			Filters: x.Fallback(question),
			Source:  FiltersFallback,
			Err:     errors.FilterExtractionFailure(err),
		}
	}
	return FilterResult{Filters: filters, Source: FiltersExtracted}
}

// Fallback returns the default filters for question
func (x *FilterExtractor) Fallback(question string) Filters {
	return Filters{
		Companies:   x.catalog.EntityNames(),
		Years:       x.catalog.AllYears(),
		SearchQuery: question,
	}
}

func (x *FilterExtractor) extract(ctx context.Context, question string) (Filters, error) {
	prompt, err := x.prompts.RenderPrompt(ai.PromptFilters, map[string]string{
		"QUESTION": question,
		"ENTITIES": strings.Join(x.catalog.EntityNames(), ", "),
		"YEARS":    joinYears(x.catalog.AllYears()),
	})
	if err != nil {
		return Filters{}, err
	}

	resp, err := x.gen.Generate(ctx, ports.GenerateRequest{
		Profile:   ports.ProfileSmart,
		Operation: ports.OpFilterExtraction,
		JSON:      true,
		Messages:  []ports.Message{{Role: ports.RoleSystem, Content: prompt}},
	})
	if err != nil {
		return Filters{}, err
	}

	raw, err := ai.DecodeJSON[rawFilters](resp.Content)
	if err != nil {
		return Filters{}, err
	}
	return x.normalize(*raw, question), nil
}

// normalize maps names onto the catalog, drops unknown values and fills
// any empty dimension from the catalog.
func (x *FilterExtractor) normalize(raw rawFilters, question string) Filters {
	var f Filters

	seenCompany := make(map[string]bool)
	for _, c := range raw.Companies {
		name, ok := x.catalog.CanonicalEntity(c)
		if !ok {
			x.logger.Debug("dropping unknown company %q", c)
			continue
		}
		if !seenCompany[name] {
			seenCompany[name] = true
			f.Companies = append(f.Companies, name)
		}
	}

	seenYear := make(map[int]bool)
	for _, y := range raw.Years {
		year := int(y)
		if !x.catalog.HasYear(year) || seenYear[year] {
			continue
		}
		seenYear[year] = true
		f.Years = append(f.Years, year)
	}

	if len(f.Companies) == 0 {
		f.Companies = x.catalog.EntityNames()
	}
	if len(f.Years) == 0 {
		f.Years = x.catalog.AllYears()
	}

	f.SearchQuery = strings.TrimSpace(raw.SearchQuery)
	if f.SearchQuery == "" {
		f.SearchQuery = question
	}
	return f
}
