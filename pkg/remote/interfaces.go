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

// Package remote defines the boundary between the batch orchestrator and the
// decoder web service.
package remote

import (
	"context"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/walteh/easy4us/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// Factory builds a Client for one run.
type Factory func(ctx context.Context, cfg *config.Config, fs afero.Fs) (Client, error)

var registry = map[string]Factory{}

// RegisterClient makes a client implementation available by name.
func RegisterClient(name string, factory Factory) {
	registry[name] = factory
}

// 🏭 NewClient creates the client registered under name
func NewClient(ctx context.Context, name string, cfg *config.Config, fs afero.Fs) (Client, error) {
	factory, ok := registry[name]
	if !ok {
		options := make([]string, 0, len(registry))
		for k := range registry {
			options = append(options, k)
		}
		sort.Strings(options)
		return nil, errors.Errorf("remote %s not found, options: %s", name, strings.Join(options, ", "))
	}
	return factory(ctx, cfg, fs)
}

// Client is the primary interface for talking to a decoder service. One Client
// owns one authenticated session and is not safe for concurrent use.
type Client interface {
	// Login authenticates the session. Failures wrap ErrAuthentication or ErrTransport.
	Login(ctx context.Context, username, password string) error

	// Upload submits the named files from sourceDir for decoding. An error means
	// the upload could not be attempted at all; per-file outcomes are in the result.
	Upload(ctx context.Context, sourceDir string, filenames []string) (UploadResult, error)

	// DownloadDecoded fetches every decoded file and extracts it into destDir,
	// returning the extracted names. Names may accompany an error when some files
	// were written before the failure.
	DownloadDecoded(ctx context.Context, destDir string) ([]string, error)

	// ClearQueue empties the service's pending list. Safe to call on an empty queue.
	ClearQueue(ctx context.Context) error

	// Close releases the session.
	Close() error
}

// UploadResult holds what the service reported for one upload.
type UploadResult struct {
	Succeeded []string
	Failed    []string
}

// HasSuccess reports whether at least one file was reported decoded.
func (r UploadResult) HasSuccess() bool {
	return len(r.Succeeded) > 0
}

// SucceededSet returns the reported successes keyed by filename.
func (r UploadResult) SucceededSet() map[string]bool {
	set := make(map[string]bool, len(r.Succeeded))
	for _, name := range r.Succeeded {
		set[name] = true
	}
	return set
}
