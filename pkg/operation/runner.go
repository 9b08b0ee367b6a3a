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
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/easy4us/pkg/report"
	"gitlab.com/tozd/go/errors"
)

// 🏃 OperationRunner executes operations and publishes their report
type OperationRunner struct {
	logger     *zerolog.Logger
	out        io.Writer
	fs         afero.Fs
	reportFile string
}

// 🏗️ NewRunner creates a new runner. The summary goes to out; when reportFile is
// set the report is also written there through fs.
func NewRunner(logger *zerolog.Logger, out io.Writer, fs afero.Fs, reportFile string) *OperationRunner {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &OperationRunner{
		logger:     logger,
		out:        out,
		fs:         fs,
		reportFile: reportFile,
	}
}

// 🏃 Run executes an operation. The report is rendered even when the operation
// also returned an error, as long as it produced one. Failing to publish the report
// is logged and does not change the outcome of the run.
func (r *OperationRunner) Run(ctx context.Context, op Operation) (*report.Report, error) {
	rep, err := op.Execute(ctx)
	if rep == nil {
		if err == nil {
			err = errors.Errorf("operation produced no report")
		}
		return nil, err
	}

	r.logger.Info().
		Str("run_id", rep.RunID).
		Int("decoded", rep.Decoded).
		Int("not_decoded", len(rep.NotDecoded)).
		Int("copied", rep.Copied).
		Bool("interrupted", rep.Interrupted).
		Dur("duration", rep.Duration()).
		Msg("run finished")

	if renderErr := rep.Render(r.out); renderErr != nil {
		r.logger.Warn().Err(renderErr).Msg("could not render summary")
	}

	if r.reportFile != "" {
		if writeErr := rep.WriteFile(r.fs, r.reportFile); writeErr != nil {
			r.logger.Warn().Err(writeErr).Str("path", r.reportFile).Msg("could not write report file")
		} else {
			r.logger.Debug().Str("path", r.reportFile).Msg("wrote report file")
		}
	}

	return rep, err
}
