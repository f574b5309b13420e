package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"finresearch/domain/research"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"join": strings.Join,
}).ParseFS(templateFS, "templates/report.html"))

// MarkdownToHTML renders markdown text to an HTML fragment
func MarkdownToHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return markdown.Render(doc, renderer)
}

type evidenceView struct {
	Index      int
	Capability string
	Question   string
	Answer     template.HTML
	Sources    []string
}

type reportView struct {
	RunID      string
	Question   string
	Path       []string
	DurationMs int64
	Answer     template.HTML
	Evidence   []evidenceView
}

// RenderHTML renders a completed run as a standalone HTML page
func RenderHTML(state *research.RunState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("run state is required")
	}

	view := reportView{
		RunID:      state.RunID,
		Question:   state.Request.OriginalQuestion,
		DurationMs: state.DurationMs,
		Answer:     template.HTML(MarkdownToHTML(state.FinalAnswer)),
	}
	for _, s := range state.Path {
		view.Path = append(view.Path, s.String())
	}
	for i, rec := range state.EvidenceLedger.Records() {
		ev := evidenceView{
			Index:      i + 1,
			Capability: rec.Capability.String(),
			Question:   rec.Question,
			Answer:     template.HTML(MarkdownToHTML(rec.Answer)),
		}
		for _, src := range rec.Sources {
			ev.Sources = append(ev.Sources, src.String())
		}
		view.Evidence = append(view.Evidence, ev)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Markdown formats a run for terminal output
func Markdown(state *research.RunState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", state.Request.OriginalQuestion)
	b.WriteString(state.FinalAnswer)
	b.WriteString("\n\n---\n")

	path := make([]string, 0, len(state.Path))
	for _, s := range state.Path {
		path = append(path, s.String())
	}
	fmt.Fprintf(&b, "Path: %s\n", strings.Join(path, " → "))
	fmt.Fprintf(&b, "Evidence records: %d\n", state.EvidenceLedger.Len())
	fmt.Fprintf(&b, "Elapsed: %.1fs\n", float64(state.DurationMs)/1000)
	return b.String()
}
