package services

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"answerhub/internal/models"
)

// builtinFallback is the compiled-in last-resort dataset, used when no
// fallback file is configured or the configured file cannot be read.
var builtinFallback = []models.KnowledgeEntry{
	{
		Question: "What is machine learning?",
		Answers: map[string]interface{}{
			"default": "Machine learning is a branch of artificial intelligence where systems learn patterns from data instead of being explicitly programmed. Models are trained on examples and then generalize to unseen inputs.",
			"short":   "ML systems learn patterns from data rather than following hand-written rules.",
		},
	},
	{
		Question: "What is artificial intelligence?",
		Answers: map[string]interface{}{
			"default": "Artificial intelligence is the field of building systems that perform tasks normally requiring human intelligence, such as understanding language, recognizing images, and making decisions.",
			"short":   "AI builds systems that handle tasks which normally need human intelligence.",
		},
	},
}

// FallbackDataset holds the static entry set served when live retrieval
// fails. It can be backed by a YAML file that is hot-reloaded on change;
// without a file it serves the built-in dataset.
type FallbackDataset struct {
	filePath string
	mu       sync.RWMutex
	entries  []models.KnowledgeEntry
}

type fallbackFile struct {
	Entries []models.KnowledgeEntry `yaml:"entries"`
}

// NewFallbackDataset creates the dataset store. If filePath is non-empty
// the file is loaded immediately; a load failure falls back to the
// built-in dataset rather than erroring.
func NewFallbackDataset(filePath string) *FallbackDataset {
	d := &FallbackDataset{
		filePath: filePath,
		entries:  builtinFallback,
	}
	if filePath != "" {
		if err := d.Reload(); err != nil {
			slog.Warn("Failed to load fallback dataset file, using built-in entries",
				"file", filePath, "error", err)
		}
	}
	return d
}

// Reload re-reads the fallback file. On any error the previous entry set
// is kept untouched.
func (d *FallbackDataset) Reload() error {
	if d.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(d.filePath)
	if err != nil {
		return fmt.Errorf("failed to read fallback file: %w", err)
	}

	var parsed fallbackFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse fallback YAML: %w", err)
	}

	valid := make([]models.KnowledgeEntry, 0, len(parsed.Entries))
	for i := range parsed.Entries {
		entry := parsed.Entries[i]
		if !entry.Valid() {
			slog.Warn("Skipping fallback entry with empty question", "index", i)
			continue
		}
		if entry.Answers == nil {
			entry.Answers = map[string]interface{}{}
		}
		valid = append(valid, entry)
	}
	if len(valid) == 0 {
		return fmt.Errorf("fallback file %s contains no valid entries", d.filePath)
	}

	d.mu.Lock()
	d.entries = valid
	d.mu.Unlock()

	slog.Info("Fallback dataset loaded", "file", d.filePath, "entries", len(valid))
	return nil
}

// Entries returns a copy of the current fallback entry set.
func (d *FallbackDataset) Entries() []models.KnowledgeEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.KnowledgeEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// FilePath returns the configured fallback file, empty when built-in only.
func (d *FallbackDataset) FilePath() string {
	return d.filePath
}
