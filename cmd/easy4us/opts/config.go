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

package opts

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/walteh/easy4us/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// EnvPrefix prefixes every environment variable, e.g. EASY4US_PASSWORD.
const EnvPrefix = "EASY4US"

// Flag names, which double as viper keys.
const (
	FlagConfig      = "config"
	FlagVerbose     = "verbose"
	FlagLogFile     = "log-file"
	FlagUsername    = "username"
	FlagPassword    = "password"
	FlagSource      = "source"
	FlagDestination = "destination"
	FlagDecoder     = "decoder"
	FlagOverwrite   = "overwrite"
	FlagBatchSize   = "batch-size"
	FlagBatchDelay  = "batch-delay"
	FlagExclude     = "exclude"
	FlagReport      = "report"
)

// NewViper returns a viper instance reading EASY4US_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// AddRootFlags adds the flags shared by every command
func AddRootFlags(flags *pflag.FlagSet) {
	flags.StringP(FlagConfig, "c", "", "config file (.yaml, .yml, .json or .hcl)")
	flags.BoolP(FlagVerbose, "v", false, "enable debug logging")
	flags.String(FlagLogFile, "", "also append JSON logs to this file")
}

// AddRunFlags adds the flags describing a source tree and how to process it
func AddRunFlags(flags *pflag.FlagSet) {
	flags.StringP(FlagSource, "s", "", "directory containing the encoded files")
	flags.StringP(FlagDestination, "o", "", "output directory (default <source>_decoded)")
	flags.StringP(FlagDecoder, "d", config.DefaultDecoder, "decoder version, e.g. ic10php72")
	flags.BoolP(FlagOverwrite, "w", false, "decode files that already exist in the destination")
	flags.Int(FlagBatchSize, config.DefaultBatchSize, fmt.Sprintf("files per upload (1-%d)", config.MaxBatchSize))
	flags.Duration(FlagBatchDelay, config.DefaultBatchDelay, "pause between batches")
	flags.StringSlice(FlagExclude, nil, "glob patterns to leave out, relative to the source")
	flags.String(FlagReport, "", "write a .json or .yaml report to this path")
}

// AddCredentialFlags adds the account flags
func AddCredentialFlags(flags *pflag.FlagSet) {
	flags.StringP(FlagUsername, "u", "", "easytoyou.eu username")
	flags.StringP(FlagPassword, "p", "", "easytoyou.eu password (prompted on a terminal when omitted)")
}

// 🎯 Resolve builds the run configuration: defaults, then the config file, then
// environment variables and explicitly set flags.
func Resolve(ctx context.Context, v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString(FlagConfig); path != "" {
		loaded, err := config.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overlay(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overlay copies every key set by environment or an explicit flag onto cfg.
func overlay(v *viper.Viper, cfg *config.Config) {
	strs := map[string]*string{
		FlagUsername:    &cfg.Username,
		FlagPassword:    &cfg.Password,
		FlagSource:      &cfg.Source,
		FlagDestination: &cfg.Destination,
		FlagDecoder:     &cfg.Remote.Decoder,
		FlagReport:      &cfg.ReportFile,
		FlagLogFile:     &cfg.LogFile,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	if v.IsSet(FlagOverwrite) {
		cfg.Overwrite = v.GetBool(FlagOverwrite)
	}
	if v.IsSet(FlagVerbose) {
		cfg.Verbose = v.GetBool(FlagVerbose)
	}
	if v.IsSet(FlagBatchSize) {
		cfg.BatchSize = v.GetInt(FlagBatchSize)
	}
	if v.IsSet(FlagBatchDelay) {
		cfg.BatchDelay = config.Duration(v.GetDuration(FlagBatchDelay))
	}
	if v.IsSet(FlagExclude) {
		cfg.Classify.Exclude = v.GetStringSlice(FlagExclude)
	}
}
