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
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/easy4us/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

const (
	successSelector = "div.alert-success, span.alert-success, div.success, span.success"
	failureSelector = "div.alert-danger, span.alert-danger, div.error, span.error, div.danger, span.danger"
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// 📤 Upload sends the named files from sourceDir in one multipart request and reads
// the per-file outcome from the alerts on the result page.
func (c *Client) Upload(ctx context.Context, sourceDir string, filenames []string) (remote.UploadResult, error) {
	logger := zerolog.Ctx(ctx)

	if len(filenames) == 0 {
		return remote.UploadResult{}, nil
	}

	page, _, err := c.getDocument(ctx, c.decoderURL())
	if err != nil {
		return remote.UploadResult{}, errors.Errorf("loading decoder page: %w", err)
	}

	field, err := c.locator.LocateUploadField(page)
	if err != nil {
		return remote.UploadResult{}, errors.Errorf("locating upload field: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	attached := 0
	for _, name := range filenames {
		if !strings.EqualFold(filepath.Ext(name), c.extension) {
			logger.Warn().Str("file", name).Msg("not uploading file with unexpected extension")
			continue
		}
		data, err := afero.ReadFile(c.fs, filepath.Join(sourceDir, name))
		if err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("could not read file for upload")
			continue
		}
		if err := writeFilePart(mw, field, name, data); err != nil {
			return remote.UploadResult{}, errors.Errorf("building upload body: %w", err)
		}
		attached++
	}

	if attached == 0 {
		return remote.UploadResult{Failed: append([]string(nil), filenames...)}, nil
	}

	if err := mw.WriteField("submit", "Decode"); err != nil {
		return remote.UploadResult{}, errors.Errorf("building upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return remote.UploadResult{}, errors.Errorf("building upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.decoderURL(), bytes.NewReader(body.Bytes()))
	if err != nil {
		return remote.UploadResult{}, errors.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Referer", c.decoderURL())

	logger.Debug().Int("files", attached).Str("field", field).Msg("uploading batch")

	result, _, err := c.document(req)
	if err != nil {
		return remote.UploadResult{}, errors.Errorf("uploading files: %w", err)
	}

	return parseUploadResult(result), nil
}

func writeFilePart(mw *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", "application/x-php")

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

// parseUploadResult reads "<word> <file> ..." success alerts and
// "<w> <w> <w> <file> ..." failure alerts.
func parseUploadResult(doc *goquery.Document) remote.UploadResult {
	return remote.UploadResult{
		Succeeded: alertWords(doc, successSelector, 1),
		Failed:    alertWords(doc, failureSelector, 3),
	}
}

func alertWords(doc *goquery.Document, selector string, index int) []string {
	var words []string
	seen := map[string]bool{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		fields := strings.Fields(s.Text())
		if len(fields) <= index {
			return
		}
		word := strings.Trim(fields[index], `"'.,:;`)
		if word == "" || seen[word] {
			return
		}
		seen[word] = true
		words = append(words, word)
	})
	return words
}
