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

package config

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "easy4us.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// env.NAME lets credentials stay out of the file
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(),
		},
	}

	// Define HCL schema
	type hclConfig struct {
		Username    string `hcl:"username,optional"`
		Password    string `hcl:"password,optional"`
		Source      string `hcl:"source,optional"`
		Destination string `hcl:"destination,optional"`
		Overwrite   bool   `hcl:"overwrite,optional"`
		Verbose     bool   `hcl:"verbose,optional"`
		BatchSize   int    `hcl:"batch_size,optional"`
		BatchDelay  string `hcl:"batch_delay,optional"`
		ReportFile  string `hcl:"report_file,optional"`
		LogFile     string `hcl:"log_file,optional"`
		Remote      *struct {
			BaseURL          string `hcl:"base_url,optional"`
			Decoder          string `hcl:"decoder,optional"`
			MaxRetries       int    `hcl:"max_retries,optional"`
			RetryBackoff     string `hcl:"retry_backoff,optional"`
			Timeout          string `hcl:"timeout,optional"`
			MaxClearAttempts int    `hcl:"max_clear_attempts,optional"`
			PollDelay        string `hcl:"poll_delay,optional"`
			LoginDelay       string `hcl:"login_delay,optional"`
		} `hcl:"remote,block"`
		Classify *struct {
			Extension string   `hcl:"extension,optional"`
			Signature string   `hcl:"signature,optional"`
			ScanBytes int      `hcl:"scan_bytes,optional"`
			Exclude   []string `hcl:"exclude,optional"`
		} `hcl:"classify,block"`
	}

	// Decode HCL
	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{
		Username:    hclCfg.Username,
		Password:    hclCfg.Password,
		Source:      hclCfg.Source,
		Destination: hclCfg.Destination,
		Overwrite:   hclCfg.Overwrite,
		Verbose:     hclCfg.Verbose,
		BatchSize:   hclCfg.BatchSize,
		ReportFile:  hclCfg.ReportFile,
		LogFile:     hclCfg.LogFile,
	}

	var err error
	if cfg.BatchDelay, err = ParseDuration(hclCfg.BatchDelay); err != nil {
		return nil, errors.Errorf("batch_delay: %w", err)
	}

	if r := hclCfg.Remote; r != nil {
		cfg.Remote = RemoteArgs{
			BaseURL:          r.BaseURL,
			Decoder:          r.Decoder,
			MaxRetries:       r.MaxRetries,
			MaxClearAttempts: r.MaxClearAttempts,
		}
		durations := []struct {
			name string
			raw  string
			dst  *Duration
		}{
			{"remote.retry_backoff", r.RetryBackoff, &cfg.Remote.RetryBackoff},
			{"remote.timeout", r.Timeout, &cfg.Remote.Timeout},
			{"remote.poll_delay", r.PollDelay, &cfg.Remote.PollDelay},
			{"remote.login_delay", r.LoginDelay, &cfg.Remote.LoginDelay},
		}
		for _, d := range durations {
			if *d.dst, err = ParseDuration(d.raw); err != nil {
				return nil, errors.Errorf("%s: %w", d.name, err)
			}
		}
	}

	if c := hclCfg.Classify; c != nil {
		cfg.Classify = ClassifyArgs{
			Extension: c.Extension,
			Signature: c.Signature,
			ScanBytes: c.ScanBytes,
			Exclude:   c.Exclude,
		}
	}

	return cfg, nil
}

func envObject() cty.Value {
	vals := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vals[k] = cty.StringVal(v)
	}
	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}
