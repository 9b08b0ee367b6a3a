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
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/easy4us/pkg/config"
	"github.com/walteh/easy4us/pkg/remote"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/publicsuffix"
)

// Name is the name the client is registered under in the remote package.
const Name = "easytoyou"

func init() {
	remote.RegisterClient(Name, func(ctx context.Context, cfg *config.Config, fs afero.Fs) (remote.Client, error) {
		return New(OptionsFromConfig(cfg, fs))
	})
}

var _ remote.Client = (*Client)(nil)

// 🔧 Options configures a Client
type Options struct {
	BaseURL          string
	Decoder          string
	Extension        string
	Fs               afero.Fs
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	MaxClearAttempts int
	PollDelay        time.Duration
	LoginDelay       time.Duration
	Locator          FieldLocator
	Transport        http.RoundTripper
}

// OptionsFromConfig maps the remote section of the run configuration. The upload
// filter follows the classifier extension.
func OptionsFromConfig(cfg *config.Config, fs afero.Fs) Options {
	args := cfg.Remote
	return Options{
		Extension:        cfg.Classify.Extension,
		BaseURL:          args.BaseURL,
		Decoder:          args.Decoder,
		Fs:               fs,
		Timeout:          args.Timeout.Std(),
		MaxRetries:       args.MaxRetries,
		RetryBackoff:     args.RetryBackoff.Std(),
		MaxClearAttempts: args.MaxClearAttempts,
		PollDelay:        args.PollDelay.Std(),
		LoginDelay:       args.LoginDelay.Std(),
	}
}

// 🌐 Client is a cookie session against the decoder site
type Client struct {
	baseURL          string
	decoder          string
	extension        string
	fs               afero.Fs
	http             *http.Client
	locator          FieldLocator
	maxClearAttempts int
	pollDelay        time.Duration
	loginDelay       time.Duration
}

// 🏭 New creates a client with a fresh cookie jar
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, errors.Errorf("invalid base url %q: %w", opts.BaseURL, err)
	}
	if opts.Decoder == "" {
		opts.Decoder = config.DefaultDecoder
	}
	if opts.Extension == "" {
		opts.Extension = config.DefaultExtension
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Locator == nil {
		opts.Locator = SelectorLocator{}
	}
	if opts.MaxClearAttempts <= 0 {
		opts.MaxClearAttempts = config.DefaultMaxClearAttempts
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Errorf("creating cookie jar: %w", err)
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		decoder:   opts.Decoder,
		extension: strings.ToLower(opts.Extension),
		fs:        opts.Fs,
		http: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
			Transport: &headerTransport{
				next: newRetryTransport(opts.Transport, opts.MaxRetries, opts.RetryBackoff),
			},
		},
		locator:          opts.Locator,
		maxClearAttempts: opts.MaxClearAttempts,
		pollDelay:        opts.PollDelay,
		loginDelay:       opts.LoginDelay,
	}, nil
}

// Close drops idle connections. The cookie jar goes with the client.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) decoderURL() string {
	return c.url("/decoder/" + c.decoder)
}

func (c *Client) queueURL() string {
	return c.decoderURL() + "/1"
}

// do sends req and fails on any non-2xx answer. The caller closes the body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	zerolog.Ctx(req.Context()).Trace().Str("method", req.Method).Str("url", req.URL.String()).Msg("sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(req, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, transportError(req, errors.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	return resp, nil
}

func transportError(req *http.Request, err error) error {
	return errors.Errorf("%s %s: %w", req.Method, req.URL.Path, errors.Join(remote.ErrTransport, err))
}

// getDocument fetches and parses an HTML page, returning the URL it ended on.
func (c *Client) getDocument(ctx context.Context, target string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, errors.Errorf("creating request: %w", err)
	}
	return c.document(req)
}

func (c *Client) postForm(ctx context.Context, target string, form url.Values, headers map[string]string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, errors.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.document(req)
}

func (c *Client) document(req *http.Request) (*goquery.Document, *url.URL, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, transportError(req, errors.Errorf("parsing html: %w", err))
	}
	return doc, resp.Request.URL, nil
}
