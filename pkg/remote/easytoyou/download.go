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

package easytoyou

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/walteh/easy4us/pkg/archive"
	"github.com/walteh/easy4us/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// maxArchiveSize caps how much of the download is buffered in memory.
const maxArchiveSize = 512 << 20

// 📥 DownloadDecoded fetches the bundle of every decoded file in the queue and
// extracts it into destDir. On error the returned names are the files that were
// nevertheless written.
func (c *Client) DownloadDecoded(ctx context.Context, destDir string) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/download.php?id=all"), nil)
	if err != nil {
		return nil, errors.Errorf("creating request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, errors.Errorf("downloading archive: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize+1))
	if err != nil {
		return nil, transportError(req, errors.Errorf("reading archive: %w", err))
	}
	if len(data) > maxArchiveSize {
		return nil, errors.Errorf("%w: archive larger than %d bytes", remote.ErrArchiveFormat, maxArchiveSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if !archive.IsZip(data) {
		return nil, errors.Errorf("%w: got %q instead of a zip archive", remote.ErrArchiveFormat, contentType)
	}

	names, err := archive.Extract(ctx, c.fs, data, destDir)
	if err != nil {
		// names holds whatever was already moved into destDir
		if errors.Is(err, archive.ErrNotArchive) || errors.Is(err, archive.ErrUnsafePath) {
			return names, errors.Errorf("extracting archive: %w", errors.Join(remote.ErrArchiveFormat, err))
		}
		return names, errors.Errorf("extracting archive: %w", err)
	}

	logger.Debug().Int("files", len(names)).Str("content_type", contentType).Str("dest", destDir).Msg("extracted decoded files")
	return names, nil
}
