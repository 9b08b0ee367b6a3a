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
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/walteh/easy4us/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Viper  *viper.Viper
	Fs     afero.Fs
	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer

	// Set by the root command before a subcommand runs
	Config *config.Config
	RunID  string

	closers []io.Closer
}

// New returns options wired to the real filesystem and standard streams.
func New() *RootOpts {
	return &RootOpts{
		Viper:  NewViper(),
		Fs:     afero.NewOsFs(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// AddCloser registers c to be closed by Close.
func (o *RootOpts) AddCloser(c io.Closer) {
	o.closers = append(o.closers, c)
}

// Close releases everything registered with AddCloser, newest first.
func (o *RootOpts) Close() error {
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	o.closers = nil
	if len(errs) > 0 {
		return errors.Errorf("closing: %w", errors.Join(errs...))
	}
	return nil
}
