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

package operation

import (
	"path/filepath"

	"github.com/walteh/easy4us/pkg/classify"
	"github.com/walteh/easy4us/pkg/config"
)

// 📦 Batch is a group of files from one directory submitted together.
type Batch struct {
	Index     int    // 1-based position within the directory
	Total     int    // Batches in the directory
	Dir       string // Directory relative to the source root
	SourceDir string // Absolute source directory
	DestDir   string // Absolute destination directory
	Files     []classify.FileEntry
}

// Names returns the bare filenames of the batch, in order.
func (b Batch) Names() []string {
	names := make([]string, len(b.Files))
	for i, f := range b.Files {
		names[i] = f.Name
	}
	return names
}

// ✂️ Partition splits files, all from the same directory, into consecutive batches
// of at most size files. A non-positive size falls back to the default.
func Partition(files []classify.FileEntry, size int) []Batch {
	if len(files) == 0 {
		return nil
	}
	if size <= 0 {
		size = config.DefaultBatchSize
	}

	total := BatchCount(len(files), size)
	batches := make([]Batch, 0, total)
	for start := 0; start < len(files); start += size {
		end := min(start+size, len(files))
		batches = append(batches, Batch{
			Index: len(batches) + 1,
			Total: total,
			Dir:   files[start].Dir(),
			Files: files[start:end],
		})
	}
	return batches
}

// BatchCount returns how many batches n files need at the given size.
func BatchCount(n, size int) int {
	if n <= 0 {
		return 0
	}
	if size <= 0 {
		size = config.DefaultBatchSize
	}
	return (n + size - 1) / size
}

func joinSource(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
