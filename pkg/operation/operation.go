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

package operation

import (
	"context"

	"github.com/walteh/easy4us/pkg/classify"
	"github.com/walteh/easy4us/pkg/config"
	"github.com/walteh/easy4us/pkg/log"
	"github.com/walteh/easy4us/pkg/remote"
	"github.com/walteh/easy4us/pkg/report"
	"github.com/walteh/easy4us/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// 🎯 Operation is a single run over a source tree.
type Operation interface {
	// Execute runs the operation. A nil report means nothing was attempted.
	Execute(ctx context.Context) (*report.Report, error)
}

// 🔧 Options wires the pieces an operation works with
type Options struct {
	// Config is the validated run configuration
	Config *config.Config
	// Classifier decides which files go to the decoder
	Classifier *classify.Classifier
	// Status mirrors files into the destination and tracks outcomes
	Status *status.Manager
	// Console prints per-file progress
	Console *log.Logger
	// Client talks to the decoder service; only decode runs need it
	Client remote.Client
	// Pacer waits between batches; defaults to SleepPacer
	Pacer Pacer
	// RunID labels the report; a fresh one is generated when empty
	RunID string
}

// BaseOperation holds what every operation shares.
type BaseOperation struct {
	cfg        *config.Config
	classifier *classify.Classifier
	status     *status.Manager
	console    *log.Logger
	runID      string
}

func newBaseOperation(opts Options) (BaseOperation, error) {
	if opts.Config == nil {
		return BaseOperation{}, errors.Errorf("config is required")
	}
	if opts.Classifier == nil {
		return BaseOperation{}, errors.Errorf("classifier is required")
	}
	if opts.Status == nil {
		return BaseOperation{}, errors.Errorf("status manager is required")
	}
	if opts.Console == nil {
		return BaseOperation{}, errors.Errorf("console logger is required")
	}
	return BaseOperation{
		cfg:        opts.Config,
		classifier: opts.Classifier,
		status:     opts.Status,
		console:    opts.Console,
		runID:      opts.RunID,
	}, nil
}

func (b BaseOperation) sourcePath(rel string) string {
	return joinSource(b.cfg.Source, rel)
}

// checkSource fails fast on a missing or non-directory source.
func (b BaseOperation) checkSource() error {
	info, err := b.classifier.Fs().Stat(b.cfg.Source)
	if err != nil {
		return errors.Errorf("checking source %s: %w", b.cfg.Source, err)
	}
	if !info.IsDir() {
		return errors.Errorf("source %s is not a directory", b.cfg.Source)
	}
	return nil
}

func (b BaseOperation) newReport() *report.Report {
	rep := report.New(b.cfg.Source, b.cfg.Destination, b.cfg.Remote.Decoder)
	if b.runID != "" {
		rep.RunID = b.runID
	}
	return rep
}

// splitEntries separates files for the decoder from files copied as-is.
func splitEntries(entries []classify.FileEntry) (encoded, plain []classify.FileEntry) {
	for _, e := range entries {
		if e.Kind == classify.KindDecode {
			encoded = append(encoded, e)
		} else {
			plain = append(plain, e)
		}
	}
	return encoded, plain
}
