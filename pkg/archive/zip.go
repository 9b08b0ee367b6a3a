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

// Package archive extracts the ZIP bundles returned by the decoder service.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrNotArchive is returned when a payload does not start with a ZIP header.
	ErrNotArchive = errors.Base("payload is not a zip archive")

	// ErrUnsafePath is returned for entries whose name cannot be written inside the destination.
	ErrUnsafePath = errors.Base("unsafe archive entry path")
)

var zipMagic = []byte("PK\x03\x04")

// 🔍 IsZip reports whether data starts with a local file header.
// An empty archive (end-of-central-directory only) is also accepted.
func IsZip(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic) || bytes.HasPrefix(data, []byte("PK\x05\x06"))
}

// 📦 Extract writes every file entry of the archive in data directly into destDir,
// dropping any directory part of the entry names. It returns the written names in
// archive order.
//
// Every entry is validated and staged under a temporary name before any of them is
// moved into place, so a bad entry leaves destDir untouched. Only a failure while
// moving staged files can leave some in place; their names are returned with the error.
func Extract(ctx context.Context, fs afero.Fs, data []byte, destDir string) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	if !IsZip(data) {
		return nil, ErrNotArchive
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Errorf("opening zip: %w", errors.Join(ErrNotArchive, err))
	}

	type pending struct {
		entry *zip.File
		name  string
		tmp   string
	}

	entries := make([]*pending, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		name, err := flatName(f.Name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &pending{entry: f, name: name})
	}

	if err := fs.MkdirAll(destDir, 0o755); err != nil {
		return nil, errors.Errorf("creating destination %s: %w", destDir, err)
	}

	cleanup := func() {
		for _, p := range entries {
			if p.tmp != "" {
				_ = fs.Remove(p.tmp)
			}
		}
	}

	for _, p := range entries {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}
		tmp, err := stageEntry(fs, p.entry, filepath.Join(destDir, p.name))
		if err != nil {
			cleanup()
			return nil, errors.Errorf("extracting %s: %w", p.entry.Name, err)
		}
		p.tmp = tmp
	}

	names := make([]string, 0, len(entries))
	for _, p := range entries {
		dest := filepath.Join(destDir, p.name)
		if err := fs.Rename(p.tmp, dest); err != nil {
			cleanup()
			return names, errors.Errorf("moving %s into place: %w", p.name, err)
		}
		p.tmp = ""
		if !p.entry.Modified.IsZero() {
			_ = fs.Chtimes(dest, p.entry.Modified, p.entry.Modified)
		}

		logger.Debug().Str("entry", p.entry.Name).Str("file", p.name).Msg("extracted archive entry")
		names = append(names, p.name)
	}

	return names, nil
}

func flatName(entry string) (string, error) {
	if strings.ContainsRune(entry, '\x00') {
		return "", errors.Errorf("%w: %q", ErrUnsafePath, entry)
	}
	name := path.Base(strings.ReplaceAll(entry, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return "", errors.Errorf("%w: %q", ErrUnsafePath, entry)
	}
	return name, nil
}

// stageEntry writes the entry to a temp file next to dest and returns its name.
func stageEntry(fs afero.Fs, f *zip.File, dest string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", errors.Errorf("opening entry: %w", err)
	}
	defer rc.Close()

	tmp, err := afero.TempFile(fs, filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return "", errors.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, copyErr := io.Copy(tmp, rc)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = fs.Remove(tmpName)
		return "", errors.Errorf("writing temp file: %w", errors.Join(copyErr, closeErr))
	}
	return tmpName, nil
}
