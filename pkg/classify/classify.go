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

// Package classify decides which files of a source tree are ionCube-encoded and
// must go through the remote decoder, and which are copied verbatim.
package classify

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/easy4us/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ Kind is the action a file gets during a run
type Kind int

const (
	KindCopy Kind = iota
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	default:
		return "copy"
	}
}

// 📄 FileEntry is one file found during traversal
type FileEntry struct {
	RelPath string // Path relative to the walk root, slash separated
	Name    string // Base name
	Encoded bool   // Leading bytes contain the loader signature
	Kind    Kind
}

// Dir returns the slash-separated directory of the entry relative to the walk root.
func (e FileEntry) Dir() string {
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(e.RelPath)))
	if dir == "." {
		return ""
	}
	return dir
}

// 🔧 Options configures a Classifier
type Options struct {
	Extension string   // e.g. ".php"
	Signature string   // matched case-insensitively
	ScanBytes int      // size of the leading window
	Exclude   []string // doublestar patterns relative to the walk root
}

// OptionsFromConfig maps the classify section of the run configuration.
func OptionsFromConfig(args config.ClassifyArgs) Options {
	return Options{
		Extension: args.Extension,
		Signature: args.Signature,
		ScanBytes: args.ScanBytes,
		Exclude:   args.Exclude,
	}
}

// 🔍 Classifier inspects files on an afero filesystem
type Classifier struct {
	fs        afero.Fs
	extension string
	signature []byte
	scanBytes int
	exclude   []string
}

// 🏭 New creates a classifier, validating the exclude patterns
func New(fs afero.Fs, opts Options) (*Classifier, error) {
	if opts.Extension == "" {
		return nil, errors.Errorf("extension is required")
	}
	if opts.Signature == "" {
		return nil, errors.Errorf("signature is required")
	}
	if opts.ScanBytes <= 0 {
		opts.ScanBytes = 1024
	}
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return &Classifier{
		fs:        fs,
		extension: strings.ToLower(opts.Extension),
		signature: bytes.ToLower([]byte(opts.Signature)),
		scanBytes: opts.ScanBytes,
		exclude:   opts.Exclude,
	}, nil
}

// Fs returns the filesystem the classifier reads from.
func (c *Classifier) Fs() afero.Fs {
	return c.fs
}

// 🎯 Classify returns the entry for path, where rel is its walk-relative form.
// Unreadable files fall back to KindCopy.
func (c *Classifier) Classify(ctx context.Context, path, rel string) FileEntry {
	entry := FileEntry{
		RelPath: filepath.ToSlash(rel),
		Name:    filepath.Base(path),
		Kind:    KindCopy,
	}

	if !strings.EqualFold(filepath.Ext(entry.Name), c.extension) {
		return entry
	}

	encoded, err := c.HasSignature(path)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("could not read file, treating as plain")
		return entry
	}

	entry.Encoded = encoded
	if encoded {
		entry.Kind = KindDecode
	}
	return entry
}

// HasSignature reports whether the leading window of path contains the signature.
func (c *Classifier) HasSignature(path string) (bool, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return false, errors.Errorf("opening file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, c.scanBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, errors.Errorf("reading file: %w", err)
	}

	return bytes.Contains(bytes.ToLower(buf[:n]), c.signature), nil
}

// 🚫 Excluded reports whether rel matches one of the exclude patterns
func (c *Classifier) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// 📂 ScanDir classifies the regular files directly inside root/rel, in name order.
// Excluded files are left out.
func (c *Classifier) ScanDir(ctx context.Context, root, rel string) ([]FileEntry, error) {
	dir := filepath.Join(root, filepath.FromSlash(rel))
	infos, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return nil, errors.Errorf("reading directory %s: %w", dir, err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	entries := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}
		fileRel := joinRel(rel, info.Name())
		if c.Excluded(fileRel) {
			zerolog.Ctx(ctx).Debug().Str("file", fileRel).Msg("file excluded by pattern")
			continue
		}
		entries = append(entries, c.Classify(ctx, filepath.Join(dir, info.Name()), fileRel))
	}

	return entries, nil
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
