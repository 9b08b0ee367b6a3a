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

package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/easy4us/cmd/easy4us/opts"
	"github.com/walteh/easy4us/pkg/classify"
	"github.com/walteh/easy4us/pkg/log"
	"github.com/walteh/easy4us/pkg/operation"
	"github.com/walteh/easy4us/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// NewScanCmd creates the scan command
func NewScanCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Show what decode would do without contacting the service",
		Long: `Scan walks the source tree and classifies every file the same way decode
does. Nothing is uploaded and the destination is left untouched.`,
		Example: `  easy4us scan -s ./app --exclude 'vendor/**'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "scan").Logger().WithContext(cmd.Context())
			logger := zerolog.Ctx(ctx)
			console := log.FromContext(ctx)
			cfg := o.Config

			classifier, err := classify.New(o.Fs, classify.OptionsFromConfig(cfg.Classify))
			if err != nil {
				return errors.Errorf("creating classifier: %w", err)
			}

			op, err := operation.NewScanOperation(operation.Options{
				Config:     cfg,
				Classifier: classifier,
				Status:     status.New(o.Fs, cfg.Destination, logger),
				Console:    console,
				RunID:      o.RunID,
			})
			if err != nil {
				return errors.Errorf("creating scan operation: %w", err)
			}

			console.Header(cfg.String())
			if _, err := operation.NewRunner(logger, o.Stdout, o.Fs, cfg.ReportFile).Run(ctx, op); err != nil {
				return errors.Errorf("scanning: %w", err)
			}
			return nil
		},
	}

	opts.AddRunFlags(cmd.Flags())

	return cmd
}
