package ai

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"finresearch/internal"
)

//go:embed prompts/*.txt
var embeddedPrompts embed.FS

// Prompt names
const (
	PromptPlan           = "plan"
	PromptFilters        = "filters"
	PromptDocumentAnswer = "document_answer"
	PromptWebAnswer      = "web_answer"
	PromptMarketAnswer   = "market_answer"
	PromptSynthesize     = "synthesize"
)

// Global map to track initialized prompt directories (to avoid duplicate logs)
var (
	initializedDirs   = make(map[string]bool)
	initializedDirsMu sync.Mutex
)

// PromptManager loads prompt templates from a directory, or from the
// templates compiled into the binary when no directory is given.
type PromptManager struct {
	PromptsDir string
	fsys       fs.FS
}

// NewPromptManager creates a prompt manager
func NewPromptManager(promptsDir string) *PromptManager {
	pm := &PromptManager{PromptsDir: promptsDir}
	if promptsDir == "" {
		sub, err := fs.Sub(embeddedPrompts, "prompts")
		if err != nil {
			panic(err)
		}
		pm.fsys = sub
	} else {
		pm.fsys = os.DirFS(promptsDir)
	}

	initializedDirsMu.Lock()
	if !initializedDirs[promptsDir] {
		initializedDirs[promptsDir] = true
		source := promptsDir
		if source == "" {
			source = "embedded"
		}
		internal.DefaultLogger.With("PromptManager").Debug("Initialized for directory: %s", source)
	}
	initializedDirsMu.Unlock()

	return pm
}

// LoadPrompt loads a prompt template by name
func (pm *PromptManager) LoadPrompt(name string) (string, error) {
	content, err := fs.ReadFile(pm.fsys, name+".txt")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("prompt template not found: %s", name)
		}
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return string(content), nil
}

// RenderPrompt replaces {PLACEHOLDER} with values. Keys are applied in
// sorted order so output does not depend on map iteration.
func (pm *PromptManager) RenderPrompt(name string, replacements map[string]string) (string, error) {
	template, err := pm.LoadPrompt(name)
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := template
	for _, placeholder := range keys {
		result = strings.ReplaceAll(result, "{"+placeholder+"}", replacements[placeholder])
	}
	return result, nil
}
