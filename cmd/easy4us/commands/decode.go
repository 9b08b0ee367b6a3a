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
	"github.com/walteh/easy4us/pkg/remote"
	"github.com/walteh/easy4us/pkg/remote/easytoyou"
	"github.com/walteh/easy4us/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// NewDecodeCmd creates the decode command
func NewDecodeCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode every encoded file below a source directory",
		Long: `Decode mirrors the source tree into the destination.
It will:
1. Log in to easytoyou.eu
2. Copy plain files as they are
3. Upload encoded files in batches and unpack the decoded results
4. Print which files could not be decoded

Files already present in the destination are skipped unless --overwrite is set,
so an interrupted run can simply be started again.`,
		Example: `  easy4us decode -u me -s ./app -o ./app_decoded
  EASY4US_PASSWORD=secret easy4us decode -u me -s ./app --report run.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "decode").Logger().WithContext(cmd.Context())
			logger := zerolog.Ctx(ctx)
			console := log.FromContext(ctx)
			cfg := o.Config

			if cfg.Password == "" && cfg.Username != "" {
				pw, err := opts.PromptPassword(o.Stdin, o.Stderr, cfg.Username)
				if err != nil {
					return err
				}
				cfg.Password = pw
			}
			if err := cfg.RequireCredentials(); err != nil {
				return errors.Errorf("invalid arguments: %w", err)
			}

			classifier, err := classify.New(o.Fs, classify.OptionsFromConfig(cfg.Classify))
			if err != nil {
				return errors.Errorf("creating classifier: %w", err)
			}

			client, err := remote.NewClient(ctx, easytoyou.Name, cfg, o.Fs)
			if err != nil {
				return errors.Errorf("creating client: %w", err)
			}

			op, err := operation.NewDecodeOperation(operation.Options{
				Config:     cfg,
				Classifier: classifier,
				Status:     status.New(o.Fs, cfg.Destination, logger),
				Console:    console,
				Client:     client,
				RunID:      o.RunID,
			})
			if err != nil {
				_ = client.Close()
				return errors.Errorf("creating decode operation: %w", err)
			}

			console.Header(cfg.String())
			if _, err := operation.NewRunner(logger, o.Stdout, o.Fs, cfg.ReportFile).Run(ctx, op); err != nil {
				return errors.Errorf("decoding: %w", err)
			}
			return nil
		},
	}

	opts.AddCredentialFlags(cmd.Flags())
	opts.AddRunFlags(cmd.Flags())

	return cmd
}
