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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🎛️ Defaults used when a field is left empty
const (
	DefaultBaseURL          = "https://easytoyou.eu"
	DefaultDecoder          = "ic11php72"
	DefaultExtension        = ".php"
	DefaultSignature        = "ioncube"
	DefaultScanBytes        = 1024
	DefaultBatchSize        = 20
	DefaultMaxRetries       = 3
	DefaultMaxClearAttempts = 10
	DefaultBatchDelay       = 2 * time.Second
	DefaultPollDelay        = 500 * time.Millisecond
	DefaultLoginDelay       = 1 * time.Second
	DefaultRetryBackoff     = 1 * time.Second
	DefaultTimeout          = 120 * time.Second

	// MaxBatchSize is the largest batch the remote upload form accepts.
	MaxBatchSize = 25
)

var decoderPattern = regexp.MustCompile(`^ic\d+php\d+$`)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 🌐 RemoteArgs configures the easytoyou.eu session
type RemoteArgs struct {
	BaseURL          string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Decoder          string   `json:"decoder,omitempty" yaml:"decoder,omitempty"`
	MaxRetries       int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RetryBackoff     Duration `json:"retry_backoff,omitempty" yaml:"retry_backoff,omitempty"`
	Timeout          Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxClearAttempts int      `json:"max_clear_attempts,omitempty" yaml:"max_clear_attempts,omitempty"`
	PollDelay        Duration `json:"poll_delay,omitempty" yaml:"poll_delay,omitempty"`
	LoginDelay       Duration `json:"login_delay,omitempty" yaml:"login_delay,omitempty"`
}

// 🔍 ClassifyArgs configures how encoded files are recognized
type ClassifyArgs struct {
	Extension string   `json:"extension,omitempty" yaml:"extension,omitempty"`
	Signature string   `json:"signature,omitempty" yaml:"signature,omitempty"`
	ScanBytes int      `json:"scan_bytes,omitempty" yaml:"scan_bytes,omitempty"`
	Exclude   []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// 📚 Config represents the complete configuration of a run
type Config struct {
	Username    string       `json:"username,omitempty" yaml:"username,omitempty"`
	Password    string       `json:"password,omitempty" yaml:"password,omitempty"`
	Source      string       `json:"source" yaml:"source"`
	Destination string       `json:"destination,omitempty" yaml:"destination,omitempty"`
	Overwrite   bool         `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
	Verbose     bool         `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	BatchSize   int          `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	BatchDelay  Duration     `json:"batch_delay,omitempty" yaml:"batch_delay,omitempty"`
	ReportFile  string       `json:"report_file,omitempty" yaml:"report_file,omitempty"`
	LogFile     string       `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Remote      RemoteArgs   `json:"remote,omitempty" yaml:"remote,omitempty"`
	Classify    ClassifyArgs `json:"classify,omitempty" yaml:"classify,omitempty"`
}

// 🏭 Default returns a config with every default filled in except paths and credentials
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	// Get parser
	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	// Parse config
	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = Duration(DefaultBatchDelay)
	}
	if cfg.Remote.BaseURL == "" {
		cfg.Remote.BaseURL = DefaultBaseURL
	}
	if cfg.Remote.Decoder == "" {
		cfg.Remote.Decoder = DefaultDecoder
	}
	if cfg.Remote.MaxRetries == 0 {
		cfg.Remote.MaxRetries = DefaultMaxRetries
	}
	if cfg.Remote.RetryBackoff == 0 {
		cfg.Remote.RetryBackoff = Duration(DefaultRetryBackoff)
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = Duration(DefaultTimeout)
	}
	if cfg.Remote.MaxClearAttempts == 0 {
		cfg.Remote.MaxClearAttempts = DefaultMaxClearAttempts
	}
	if cfg.Remote.PollDelay == 0 {
		cfg.Remote.PollDelay = Duration(DefaultPollDelay)
	}
	if cfg.Remote.LoginDelay == 0 {
		cfg.Remote.LoginDelay = Duration(DefaultLoginDelay)
	}
	if cfg.Classify.Extension == "" {
		cfg.Classify.Extension = DefaultExtension
	}
	if cfg.Classify.Signature == "" {
		cfg.Classify.Signature = DefaultSignature
	}
	if cfg.Classify.ScanBytes == 0 {
		cfg.Classify.ScanBytes = DefaultScanBytes
	}
}

// 🔍 Validate checks if the configuration is valid and normalizes it
func (cfg *Config) Validate() error {
	cfg.applyDefaults()

	if strings.TrimSpace(cfg.Source) == "" {
		return errors.Errorf("source is required")
	}
	if !decoderPattern.MatchString(cfg.Remote.Decoder) {
		return errors.Errorf("invalid decoder version %q, expected something like %s", cfg.Remote.Decoder, DefaultDecoder)
	}
	if cfg.BatchSize < 0 || cfg.BatchSize > MaxBatchSize {
		return errors.Errorf("batch_size must be between 1 and %d, got %d", MaxBatchSize, cfg.BatchSize)
	}
	if cfg.BatchDelay < 0 || cfg.Remote.PollDelay < 0 || cfg.Remote.LoginDelay < 0 {
		return errors.Errorf("delays must not be negative")
	}
	if cfg.Remote.MaxRetries < 0 {
		return errors.Errorf("max_retries must not be negative")
	}
	if cfg.Classify.ScanBytes < 0 {
		return errors.Errorf("scan_bytes must not be negative")
	}

	// Clean up paths
	cfg.Source = filepath.Clean(cfg.Source)
	derived := cfg.Destination == ""
	if derived {
		cfg.Destination = DefaultDestination(cfg.Source)
	}
	cfg.Destination = filepath.Clean(cfg.Destination)

	nested, err := isWithin(cfg.Source, cfg.Destination)
	if err != nil {
		return err
	}
	if nested && derived {
		// "-s ." would otherwise write the output into the tree being walked
		abs, err := filepath.Abs(cfg.Source)
		if err != nil {
			return errors.Errorf("resolving source: %w", err)
		}
		cfg.Destination = filepath.Join(filepath.Dir(abs), DefaultDestination(abs))
	} else if nested {
		return errors.Errorf("destination %s must not be the source or inside it", cfg.Destination)
	}

	if !strings.HasPrefix(cfg.Classify.Extension, ".") {
		cfg.Classify.Extension = "." + cfg.Classify.Extension
	}
	cfg.Remote.BaseURL = strings.TrimRight(cfg.Remote.BaseURL, "/")

	return nil
}

// 🔑 RequireCredentials checks that a username and password are present
func (cfg *Config) RequireCredentials() error {
	if cfg.Username == "" {
		return errors.Errorf("username is required")
	}
	if cfg.Password == "" {
		return errors.Errorf("password is required")
	}
	return nil
}

// isWithin reports whether path is dir itself or lies below it.
func isWithin(dir, path string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, errors.Errorf("resolving %s: %w", dir, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, errors.Errorf("resolving %s: %w", path, err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

// DefaultDestination derives "<source-basename>_decoded" in the working directory.
// Validate moves it next to the source when that would put it inside the source.
func DefaultDestination(source string) string {
	base := filepath.Base(strings.TrimRight(source, `/\`))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "source"
	}
	return base + "_decoded"
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s -> %s [%s, batch=%d, overwrite=%t]",
		cfg.Source, cfg.Destination, cfg.Remote.Decoder, cfg.BatchSize, cfg.Overwrite)
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}

	return &cfg, nil
}
