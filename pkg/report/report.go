// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package report accumulates the counters of one run and renders the end-of-run
// summary.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 📊 Report holds the outcome of one run. Only the orchestrator mutates it.
type Report struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Source      string    `json:"source" yaml:"source"`
	Destination string    `json:"destination" yaml:"destination"`
	Decoder     string    `json:"decoder,omitempty" yaml:"decoder,omitempty"`
	DryRun      bool      `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at" yaml:"finished_at"`

	FilesSeen    int `json:"files_seen" yaml:"files_seen"`
	EncodedFound int `json:"encoded_found" yaml:"encoded_found"`
	Processed    int `json:"processed" yaml:"processed"`
	Decoded      int `json:"decoded" yaml:"decoded"`
	Copied       int `json:"copied" yaml:"copied"`
	Skipped      int `json:"skipped" yaml:"skipped"`
	Batches      int `json:"batches" yaml:"batches"`

	NotDecoded  []string `json:"not_decoded" yaml:"not_decoded"`
	CopyFailed  []string `json:"copy_failed,omitempty" yaml:"copy_failed,omitempty"`
	Interrupted bool     `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// 🏭 New starts a report for a run from source to destination
func New(source, destination, decoder string) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Source:      source,
		Destination: destination,
		Decoder:     decoder,
		StartedAt:   time.Now(),
		NotDecoded:  []string{},
	}
}

// AddNotDecoded records source paths that did not end up decoded on disk.
func (r *Report) AddNotDecoded(paths ...string) {
	r.NotDecoded = append(r.NotDecoded, paths...)
}

// AddCopyFailed records source paths that could not be copied.
func (r *Report) AddCopyFailed(paths ...string) {
	r.CopyFailed = append(r.CopyFailed, paths...)
}

// Finish stamps the end time.
func (r *Report) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took, or how long it has been running.
func (r *Report) Duration() time.Duration {
	end := r.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartedAt)
}

// HasFailures reports whether any file needs attention.
func (r *Report) HasFailures() bool {
	return len(r.NotDecoded) > 0 || len(r.CopyFailed) > 0
}

func (r *Report) title() string {
	switch {
	case r.DryRun:
		return "Scan complete"
	case r.Interrupted:
		return "Decoding interrupted"
	default:
		return "Decoding complete"
	}
}

// 🖨️ Render writes the human-readable summary
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder

	b.WriteString(pterm.DefaultSection.Sprint(r.title()))

	rows := pterm.TableData{
		{"", "Count"},
		{"Files seen", fmt.Sprint(r.FilesSeen)},
		{"Encoded files", fmt.Sprint(r.EncodedFound)},
	}
	if r.DryRun {
		rows = append(rows,
			[]string{"Would decode", fmt.Sprint(r.Processed)},
			[]string{"Would copy", fmt.Sprint(r.Copied)},
			[]string{"Already decoded", fmt.Sprint(r.Skipped)},
			[]string{"Planned batches", fmt.Sprint(r.Batches)},
		)
	} else {
		rows = append(rows,
			[]string{"Processed", fmt.Sprint(r.Processed)},
			[]string{"Decoded", fmt.Sprint(r.Decoded)},
			[]string{"Copied", fmt.Sprint(r.Copied)},
			[]string{"Skipped (already decoded)", fmt.Sprint(r.Skipped)},
			[]string{"Batches", fmt.Sprint(r.Batches)},
			[]string{"Not decoded", fmt.Sprint(len(r.NotDecoded))},
		)
	}
	rows = append(rows, []string{"Duration", r.Duration().Round(time.Millisecond).String()})

	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return errors.Errorf("rendering table: %w", err)
	}
	b.WriteString(table)
	b.WriteString("\n\n")

	if err := writeList(&b, "Files that failed to decode:", r.NotDecoded); err != nil {
		return err
	}
	if err := writeList(&b, "Files that failed to copy:", r.CopyFailed); err != nil {
		return err
	}

	switch {
	case r.DryRun:
	case r.Interrupted:
		b.WriteString(pterm.Warning.Sprintln("run was interrupted, rerun to continue where it stopped"))
	case !r.HasFailures():
		b.WriteString(pterm.Success.Sprintln("every encoded file was decoded"))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Errorf("writing report: %w", err)
	}
	return nil
}

func writeList(b *strings.Builder, title string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	items := make([]pterm.BulletListItem, 0, len(paths))
	for _, p := range paths {
		items = append(items, pterm.BulletListItem{Level: 0, Text: p})
	}
	list, err := pterm.DefaultBulletList.WithItems(items).Srender()
	if err != nil {
		return errors.Errorf("rendering list: %w", err)
	}
	b.WriteString(pterm.Warning.Sprintln(title))
	b.WriteString(list)
	b.WriteString("\n")
	return nil
}

// 💾 WriteFile saves the report as YAML for .yaml/.yml paths and as JSON otherwise
func (r *Report) WriteFile(fs afero.Fs, path string) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return errors.Errorf("encoding yaml report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return errors.Errorf("encoding yaml report: %w", err)
		}
		data = buf.Bytes()
	default:
		encoded, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return errors.Errorf("encoding json report: %w", err)
		}
		data = append(encoded, '\n')
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Errorf("creating report directory: %w", err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return errors.Errorf("writing report file: %w", err)
	}
	return nil
}
