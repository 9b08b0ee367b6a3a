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
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/walteh/easy4us/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// 🔑 Login posts the credentials together with the hidden fields of the login form.
// The site redirects to the account area on success and re-renders the form otherwise.
func (c *Client) Login(ctx context.Context, username, password string) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("user", username).Msg("logging in")

	loginURL := c.url("/login")
	doc, _, err := c.getDocument(ctx, loginURL)
	if err != nil {
		return errors.Errorf("loading login page: %w", err)
	}

	if err := sleep(ctx, c.loginDelay); err != nil {
		return err
	}

	form := hiddenFields(doc.Find("form").First())
	form.Set("loginname", username)
	form.Set("password", password)

	result, final, err := c.postForm(ctx, loginURL, form, map[string]string{
		"Origin":  c.baseURL,
		"Referer": loginURL,
	})
	if err != nil {
		return errors.Errorf("submitting login: %w", err)
	}

	if loggedIn(final) {
		logger.Info().Str("url", final.String()).Msg("login successful")
		return nil
	}

	msg := collectText(result, "div.error, span.error, div.alert-danger, span.alert-danger")
	if msg == "" {
		msg = "ended on " + final.Path
	}
	return errors.Errorf("%w: %s", remote.ErrAuthentication, msg)
}

func hiddenFields(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		value, _ := s.Attr("value")
		if name != "" && value != "" {
			values.Set(name, value)
		}
	})
	return values
}

func loggedIn(final *url.URL) bool {
	if final == nil {
		return false
	}
	u := final.String()
	return strings.Contains(u, "/account") || strings.Contains(strings.ToLower(u), "dashboard")
}

func collectText(doc *goquery.Document, selector string) string {
	var parts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}
