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

package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/easy4us/cmd/easy4us/commands"
	"github.com/walteh/easy4us/cmd/easy4us/opts"
	"github.com/walteh/easy4us/pkg/config"
	"github.com/walteh/easy4us/pkg/log"
	"gitlab.com/tozd/go/errors"
)

func newRootOpts() *opts.RootOpts {
	return opts.New()
}

// newRootCmd builds the command tree. Every command except version resolves the
// configuration and sets up logging before it runs.
func newRootCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "easy4us",
		Short: "Bulk-decode ionCube protected PHP through easytoyou.eu",
		Long: `easy4us walks a directory of ionCube encoded PHP, sends the encoded files to
easytoyou.eu in batches and writes the decoded sources into a mirrored tree.
Flags can also be given as EASY4US_* environment variables or in a config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Viper.BindPFlags(cmd.Flags()); err != nil {
				return errors.Errorf("binding flags: %w", err)
			}

			cfg, err := opts.Resolve(cmd.Context(), o.Viper)
			if err != nil {
				return err
			}

			ctx, err := setupLogging(cmd.Context(), o, cfg)
			if err != nil {
				return err
			}

			o.Config = cfg
			cmd.SetContext(ctx)
			return nil
		},
	}

	opts.AddRootFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		commands.NewDecodeCmd(o),
		commands.NewScanCmd(o),
		newVersionCmd(),
	)

	return cmd
}

// setupLogging builds the run logger: a console writer on stderr, plus JSON lines
// appended to the log file when one is configured. Every record carries the run id.
func setupLogging(ctx context.Context, o *opts.RootOpts, cfg *config.Config) (context.Context, error) {
	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = zerolog.ConsoleWriter{Out: o.Stderr, TimeFormat: time.Kitchen}
	if cfg.LogFile != "" {
		f, err := o.Fs.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return ctx, errors.Errorf("opening log file: %w", err)
		}
		o.AddCloser(f)
		w = zerolog.MultiLevelWriter(w, f)
	}

	o.RunID = uuid.NewString()
	logger := zerolog.New(w).With().Timestamp().Str("run_id", o.RunID).Logger()
	ctx = logger.WithContext(ctx)
	ctx = log.NewContext(ctx, log.New(o.Stdout, logger))

	logger.Debug().Str("config", cfg.String()).Msg("configuration resolved")
	return ctx, nil
}
