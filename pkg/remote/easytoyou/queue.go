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
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🧹 ClearQueue deletes every entry listed on the queue page, polling until the
// page lists none or the attempt limit is reached.
func (c *Client) ClearQueue(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	cleared := 0

	for attempt := 1; attempt <= c.maxClearAttempts; attempt++ {
		doc, _, err := c.getDocument(ctx, c.queueURL())
		if err != nil {
			return errors.Errorf("loading queue page: %w", err)
		}

		form := url.Values{}
		doc.Find(`input[name="file[]"]`).Each(func(_ int, s *goquery.Selection) {
			if v, _ := s.Attr("value"); v != "" {
				form.Add("file[]", v)
			}
		})

		pending := len(form["file[]"])
		if pending == 0 {
			logger.Debug().Int("cleared", cleared).Int("attempts", attempt).Msg("queue is empty")
			return nil
		}

		if _, _, err := c.postForm(ctx, c.queueURL(), form, map[string]string{"Referer": c.queueURL()}); err != nil {
			return errors.Errorf("deleting queued files: %w", err)
		}
		cleared += pending
		logger.Debug().Int("files", pending).Int("attempt", attempt).Msg("deleted queued files")

		if err := sleep(ctx, c.pollDelay); err != nil {
			return err
		}
	}

	return errors.Errorf("queue still not empty after %d attempts", c.maxClearAttempts)
}
