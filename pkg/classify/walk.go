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

package classify

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// SkipRest stops a walk without reporting an error.
var SkipRest = errors.Base("skip remaining directories")

// WalkFunc is called once per directory with its slash-separated path relative to
// the walk root ("" for the root itself).
type WalkFunc func(ctx context.Context, relDir string) error

// 🚶 Walk visits root and every directory below it in pre-order.
// Excluded directories are pruned together with their contents, unreadable ones
// are logged and skipped.
func (c *Classifier) Walk(ctx context.Context, root string, fn WalkFunc) error {
	info, err := c.fs.Stat(root)
	if err != nil {
		return errors.Errorf("checking source: %w", err)
	}
	if !info.IsDir() {
		return errors.Errorf("source %s is not a directory", root)
	}

	err = afero.Walk(c.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.Errorf("relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = ""
		}

		if rel != "" && c.Excluded(rel) {
			return filepath.SkipDir
		}

		return fn(ctx, rel)
	})
	if errors.Is(err, SkipRest) {
		return nil
	}
	return err
}

// 🔢 CountEncoded counts the files below root that would be sent for decoding.
// Directories that cannot be read are logged and left out of the count.
func (c *Classifier) CountEncoded(ctx context.Context, root string) (int, error) {
	total := 0
	err := c.Walk(ctx, root, func(ctx context.Context, relDir string) error {
		entries, err := c.ScanDir(ctx, root, relDir)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("dir", relDir).Msg("not counting unreadable directory")
			return nil
		}
		for _, e := range entries {
			if e.Kind == KindDecode {
				total++
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Errorf("counting encoded files: %w", err)
	}
	return total, nil
}
