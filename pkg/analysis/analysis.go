// Package analysis runs the decode, describe, classify and score pipeline
// and writes JSON sidecars.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nzoschke/musicagent/pkg/audio"
	"github.com/nzoschke/musicagent/pkg/classify"
	"github.com/nzoschke/musicagent/pkg/features"
	"github.com/nzoschke/musicagent/pkg/insight"
	"github.com/nzoschke/musicagent/pkg/logging"
)

// Result represents the JSON output for one analysed track.
type Result struct {
	File       string     `json:"file"`
	Tags       audio.Tags `json:"tags"`
	Duration   float64    `json:"duration"`
	SampleRate int        `json:"sample_rate"`
	AnalyzedAt time.Time  `json:"analyzed_at"`

	classify.Decision
	Characteristics features.Descriptors `json:"characteristics"`
	insight.Insights

	Spectrum *features.Spectrum `json:"spectrum,omitempty"`
	Waveform *Waveform          `json:"waveform,omitempty"`
}

// WriteJSON writes the result to a JSON file.
func (r *Result) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}
	return nil
}

// SidecarPath returns the .json path next to an audio file.
func SidecarPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".json"
}

// DirStats counts what AnalyzeDir did.
type DirStats struct {
	Analyzed int
	Skipped  int
	Failed   int
}

// AnalyzeDir recursively analyzes all audio files in a directory.
// For each audio file, it creates a corresponding .json sidecar file.
// If force is true, existing JSON files are overwritten. A file that fails to
// analyse is logged and the walk continues.
func AnalyzeDir(ctx context.Context, a *Agent, dir string, force bool) (DirStats, error) {
	log := logging.Zone("analysis")
	var stats DirStats

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !audio.IsAudioPath(path) {
			return nil
		}

		jsonPath := SidecarPath(path)
		if !force {
			if _, err := os.Stat(jsonPath); err == nil {
				log.WithField("file", filepath.Base(path)).Info("skipping, already analyzed")
				stats.Skipped++
				return nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("read failed")
			stats.Failed++
			return nil
		}

		res, err := a.Run(ctx, filepath.Base(path), data, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.Failed++
			return nil
		}
		if err := res.WriteJSON(jsonPath); err != nil {
			return err
		}
		stats.Analyzed++
		return nil
	})
	return stats, err
}
