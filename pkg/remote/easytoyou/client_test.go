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
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/easy4us/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

const (
	testDecoder  = "ic11php72"
	testCSRF     = "tok-123"
	testUser     = "alice"
	testPassword = "secret"
)

const defaultDecoderPage = `<html><body>
<form method="post" enctype="multipart/form-data">
  <input type="file" id="uploadfileblue" name="uploadfile[]" multiple>
  <input type="submit" name="submit" value="Decode">
</form>
</body></html>`

type uploadedFile struct {
	field       string
	name        string
	contentType string
	content     string
}

// fakeSite mimics the pages the client scrapes.
type fakeSite struct {
	t *testing.T

	mu             sync.Mutex
	decoderPage    string
	uploadResponse string
	archive        []byte
	archiveType    string
	queue          []string
	stickyQueue    bool
	failFirst      map[string]int
	hits           map[string]int
	uploads        []uploadedFile
	submitValue    string
	uploadReferer  string
	loginOrigin    string
	loginUserAgent string
}

func newFakeSite(t *testing.T) (*fakeSite, *httptest.Server) {
	site := &fakeSite{
		t:           t,
		decoderPage: defaultDecoderPage,
		archiveType: "application/zip",
		failFirst:   map[string]int{},
		hits:        map[string]int{},
	}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	return site, srv
}

func (s *fakeSite) hitCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	s.hits[key]++
	if s.failFirst[key] > 0 {
		s.failFirst[key]--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	decoderPath := "/decoder/" + testDecoder
	switch key {
	case "GET /login":
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
		fmt.Fprintf(w, `<html><form method="post">
			<input type="hidden" name="csrf" value="%s">
			<input type="text" name="loginname"><input type="password" name="password">
		</form></html>`, testCSRF)

	case "POST /login":
		s.loginOrigin = r.Header.Get("Origin")
		s.loginUserAgent = r.Header.Get("User-Agent")
		require.NoError(s.t, r.ParseForm(), "parsing login form should succeed")
		cookie, err := r.Cookie("PHPSESSID")
		if err == nil && cookie.Value == "abc" &&
			r.PostForm.Get("csrf") == testCSRF &&
			r.PostForm.Get("loginname") == testUser &&
			r.PostForm.Get("password") == testPassword {
			http.Redirect(w, r, "/account", http.StatusSeeOther)
			return
		}
		fmt.Fprint(w, `<html><div class="alert alert-danger">Invalid username or password</div></html>`)

	case "GET /account":
		fmt.Fprint(w, `<html>welcome</html>`)

	case "GET " + decoderPath:
		fmt.Fprint(w, s.decoderPage)

	case "POST " + decoderPath:
		s.uploadReferer = r.Header.Get("Referer")
		mr, err := r.MultipartReader()
		require.NoError(s.t, err, "multipart reader should succeed")
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(s.t, err, "reading part should succeed")
			data, err := io.ReadAll(part)
			require.NoError(s.t, err, "reading part body should succeed")
			if part.FileName() == "" {
				if part.FormName() == "submit" {
					s.submitValue = string(data)
				}
				continue
			}
			s.uploads = append(s.uploads, uploadedFile{
				field:       part.FormName(),
				name:        part.FileName(),
				contentType: part.Header.Get("Content-Type"),
				content:     string(data),
			})
		}
		fmt.Fprint(w, s.uploadResponse)

	case "GET " + decoderPath + "/1":
		var b strings.Builder
		b.WriteString("<html><form>")
		for _, id := range s.queue {
			fmt.Fprintf(&b, `<input type="checkbox" name="file[]" value="%s">`, id)
		}
		b.WriteString("</form></html>")
		fmt.Fprint(w, b.String())

	case "POST " + decoderPath + "/1":
		require.NoError(s.t, r.ParseForm(), "parsing queue form should succeed")
		if !s.stickyQueue {
			remove := map[string]bool{}
			for _, v := range r.PostForm["file[]"] {
				remove[v] = true
			}
			kept := s.queue[:0]
			for _, id := range s.queue {
				if !remove[id] {
					kept = append(kept, id)
				}
			}
			s.queue = kept
		}
		fmt.Fprint(w, `<html>ok</html>`)

	case "GET /download.php":
		assert.Equal(s.t, "all", r.URL.Query().Get("id"), "download should request every file")
		w.Header().Set("Content-Type", s.archiveType)
		_, _ = w.Write(s.archive)

	default:
		http.NotFound(w, r)
	}
}

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).WithContext(context.Background())
}

func newTestClient(t *testing.T, srv *httptest.Server, fs afero.Fs, mutate ...func(*Options)) *Client {
	opts := Options{
		BaseURL:          srv.URL,
		Decoder:          testDecoder,
		Fs:               fs,
		Timeout:          5 * time.Second,
		MaxRetries:       0,
		RetryBackoff:     time.Millisecond,
		MaxClearAttempts: 3,
	}
	for _, m := range mutate {
		m(&opts)
	}
	client, err := New(opts)
	require.NoError(t, err, "creating client should succeed")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func buildZip(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err, "creating zip entry should succeed")
		_, err = w.Write([]byte(content))
		require.NoError(t, err, "writing zip entry should succeed")
	}
	require.NoError(t, zw.Close(), "closing zip should succeed")
	return buf.Bytes()
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		failLogin int
		wantErr   error
		errText   string
	}{
		{
			name:     "success",
			password: testPassword,
		},
		{
			name:     "wrong_password",
			password: "nope",
			wantErr:  remote.ErrAuthentication,
			errText:  "Invalid username or password",
		},
		{
			name:      "login_page_unavailable",
			password:  testPassword,
			failLogin: 1,
			wantErr:   remote.ErrTransport,
			errText:   "503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site, srv := newFakeSite(t)
			site.failFirst["GET /login"] = tt.failLogin
			client := newTestClient(t, srv, afero.NewMemMapFs())

			err := client.Login(testContext(t), testUser, tt.password)
			if tt.wantErr != nil {
				require.Error(t, err, "Login should fail")
				assert.True(t, errors.Is(err, tt.wantErr), "error should wrap %v, got %v", tt.wantErr, err)
				assert.Contains(t, err.Error(), tt.errText, "error should carry the reason")
				return
			}

			require.NoError(t, err, "Login should succeed")
			assert.Equal(t, srv.URL, site.loginOrigin, "origin header should be the site")
			assert.Contains(t, site.loginUserAgent, "Mozilla/5.0", "browser user agent should be sent")
		})
	}
}

func TestUpload(t *testing.T) {
	site, srv := newFakeSite(t)
	site.uploadResponse = `<html>
		<div class="alert alert-success">File a.php decoded successfully</div>
		<div class="alert alert-danger">Could not decode b.php: unsupported version</div>
	</html>`

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.php", []byte("encoded-a"), 0o644), "writing fixture should succeed")
	require.NoError(t, afero.WriteFile(fs, "/src/b.php", []byte("encoded-b"), 0o644), "writing fixture should succeed")

	client := newTestClient(t, srv, fs)
	res, err := client.Upload(testContext(t), "/src", []string{"a.php", "b.php"})
	require.NoError(t, err, "Upload should succeed")

	assert.Equal(t, []string{"a.php"}, res.Succeeded, "success alerts should be parsed")
	assert.Equal(t, []string{"b.php"}, res.Failed, "failure alerts should be parsed")

	require.Len(t, site.uploads, 2, "both files should be uploaded")
	assert.Equal(t, uploadedFile{field: "uploadfile[]", name: "a.php", contentType: "application/x-php", content: "encoded-a"}, site.uploads[0])
	assert.Equal(t, "b.php", site.uploads[1].name, "second file should be b.php")
	assert.Equal(t, "Decode", site.submitValue, "submit marker should be sent")
	assert.Equal(t, srv.URL+"/decoder/"+testDecoder, site.uploadReferer, "referer should be the decoder page")
}

func TestUploadNoReadableFiles(t *testing.T) {
	site, srv := newFakeSite(t)
	client := newTestClient(t, srv, afero.NewMemMapFs())

	res, err := client.Upload(testContext(t), "/src", []string{"missing.php", "other.php"})
	require.NoError(t, err, "Upload should not fail when nothing could be attached")
	assert.Empty(t, res.Succeeded, "nothing should succeed")
	assert.Equal(t, []string{"missing.php", "other.php"}, res.Failed, "every file should be failed")
	assert.Equal(t, 0, site.hitCount("POST /decoder/"+testDecoder), "no upload request should be made")
}

func TestUploadFormNotFound(t *testing.T) {
	site, srv := newFakeSite(t)
	site.decoderPage = `<html><body>Please log in</body></html>`

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.php", []byte("encoded"), 0o644), "writing fixture should succeed")

	client := newTestClient(t, srv, fs)
	_, err := client.Upload(testContext(t), "/src", []string{"a.php"})
	require.Error(t, err, "Upload should fail")
	assert.True(t, errors.Is(err, remote.ErrFormDiscovery), "error should be a form discovery error, got %v", err)
}

func TestUploadEmptyList(t *testing.T) {
	site, srv := newFakeSite(t)
	client := newTestClient(t, srv, afero.NewMemMapFs())

	res, err := client.Upload(testContext(t), "/src", nil)
	require.NoError(t, err, "empty upload should succeed")
	assert.False(t, res.HasSuccess(), "empty upload should have no success")
	assert.Equal(t, 0, site.hitCount("GET /decoder/"+testDecoder), "no page should be fetched")
}

func TestSelectorLocator(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    string
		wantErr bool
	}{
		{
			name: "by_id",
			html: `<input type="file" name="other[]"><input id="uploadfileblue" type="file" name="blue[]">`,
			want: "blue[]",
		},
		{
			name: "by_type",
			html: `<input type="text" name="q"><input type="file" name="docs[]">`,
			want: "docs[]",
		},
		{
			name: "by_name",
			html: `<input type="text" name="q"><input type="hidden" name="MyFiles">`,
			want: "MyFiles",
		},
		{
			name: "nameless_input_gets_default",
			html: `<input type="file">`,
			want: DefaultUploadField,
		},
		{
			name:    "missing",
			html:    `<input type="text" name="q">`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + tt.html + "</body></html>"))
			require.NoError(t, err, "parsing html should succeed")

			got, err := SelectorLocator{}.LocateUploadField(doc)
			if tt.wantErr {
				require.Error(t, err, "locating should fail")
				assert.True(t, errors.Is(err, remote.ErrFormDiscovery), "error should be a form discovery error")
				return
			}
			require.NoError(t, err, "locating should succeed")
			assert.Equal(t, tt.want, got, "field name should match")
		})
	}
}

func TestUploadWithStaticLocator(t *testing.T) {
	site, srv := newFakeSite(t)
	site.decoderPage = `<html>no recognizable form</html>`
	site.uploadResponse = `<div class="success">File a.php ok</div>`

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.php", []byte("encoded"), 0o644), "writing fixture should succeed")

	client := newTestClient(t, srv, fs, func(o *Options) { o.Locator = StaticLocator("custom[]") })
	res, err := client.Upload(testContext(t), "/src", []string{"a.php"})
	require.NoError(t, err, "Upload should succeed")
	assert.Equal(t, []string{"a.php"}, res.Succeeded, "success should be parsed")
	require.Len(t, site.uploads, 1, "one file should be uploaded")
	assert.Equal(t, "custom[]", site.uploads[0].field, "static field name should be used")
}

func TestDownloadDecoded(t *testing.T) {
	tests := []struct {
		name        string
		archive     func(t *testing.T) []byte
		archiveType string
		wantNames   []string
		wantErr     error
	}{
		{
			name: "zip",
			archive: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"a.php": "<?php echo 'a';"})
			},
			archiveType: "application/zip",
			wantNames:   []string{"a.php"},
		},
		{
			name: "zip_with_generic_content_type",
			archive: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"decoded/a.php": "<?php echo 'a';"})
			},
			archiveType: "application/octet-stream",
			wantNames:   []string{"a.php"},
		},
		{
			name: "html_error_page",
			archive: func(t *testing.T) []byte {
				return []byte("<html>session expired</html>")
			},
			archiveType: "text/html",
			wantErr:     remote.ErrArchiveFormat,
		},
		{
			name: "unsafe_entry_beside_good_one",
			archive: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"a.php": "<?php echo 'a';", "sub/..": "x"})
			},
			archiveType: "application/zip",
			wantErr:     remote.ErrArchiveFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site, srv := newFakeSite(t)
			site.archive = tt.archive(t)
			site.archiveType = tt.archiveType

			fs := afero.NewMemMapFs()
			client := newTestClient(t, srv, fs)

			names, err := client.DownloadDecoded(testContext(t), "/out/app")
			if tt.wantErr != nil {
				require.Error(t, err, "DownloadDecoded should fail")
				assert.True(t, errors.Is(err, tt.wantErr), "error should wrap %v, got %v", tt.wantErr, err)
				assert.Empty(t, names, "nothing should be reported as extracted")
				exists, _ := afero.Exists(fs, "/out/app/a.php")
				assert.False(t, exists, "no file should be left behind")
				return
			}

			require.NoError(t, err, "DownloadDecoded should succeed")
			assert.Equal(t, tt.wantNames, names, "extracted names should match")
			got, err := afero.ReadFile(fs, "/out/app/a.php")
			require.NoError(t, err, "decoded file should exist")
			assert.Equal(t, "<?php echo 'a';", string(got), "decoded content should match")
		})
	}
}

func TestClearQueue(t *testing.T) {
	t.Run("clears_all_entries", func(t *testing.T) {
		site, srv := newFakeSite(t)
		site.queue = []string{"1", "2", "3"}
		client := newTestClient(t, srv, afero.NewMemMapFs())

		require.NoError(t, client.ClearQueue(testContext(t)), "ClearQueue should succeed")
		assert.Empty(t, site.queue, "queue should be empty")
		assert.Equal(t, 1, site.hitCount("POST /decoder/"+testDecoder+"/1"), "one delete request should be made")
		assert.Equal(t, 2, site.hitCount("GET /decoder/"+testDecoder+"/1"), "queue should be polled until empty")
	})

	t.Run("empty_queue_is_noop", func(t *testing.T) {
		site, srv := newFakeSite(t)
		client := newTestClient(t, srv, afero.NewMemMapFs())

		require.NoError(t, client.ClearQueue(testContext(t)), "ClearQueue should succeed")
		require.NoError(t, client.ClearQueue(testContext(t)), "ClearQueue should be idempotent")
		assert.Equal(t, 0, site.hitCount("POST /decoder/"+testDecoder+"/1"), "no delete request should be made")
	})

	t.Run("gives_up_after_max_attempts", func(t *testing.T) {
		site, srv := newFakeSite(t)
		site.queue = []string{"1"}
		site.stickyQueue = true
		client := newTestClient(t, srv, afero.NewMemMapFs())

		err := client.ClearQueue(testContext(t))
		require.Error(t, err, "ClearQueue should give up")
		assert.Contains(t, err.Error(), "after 3 attempts", "error should mention the limit")
		assert.Equal(t, 3, site.hitCount("POST /decoder/"+testDecoder+"/1"), "delete should be tried once per attempt")
	})
}

func TestRetryTransport(t *testing.T) {
	t.Run("recovers_after_transient_errors", func(t *testing.T) {
		site, srv := newFakeSite(t)
		site.failFirst["GET /decoder/"+testDecoder+"/1"] = 2
		client := newTestClient(t, srv, afero.NewMemMapFs(), func(o *Options) { o.MaxRetries = 3 })

		require.NoError(t, client.ClearQueue(testContext(t)), "ClearQueue should succeed after retries")
		assert.Equal(t, 3, site.hitCount("GET /decoder/"+testDecoder+"/1"), "request should be retried twice")
	})

	t.Run("stops_after_max_retries", func(t *testing.T) {
		site, srv := newFakeSite(t)
		site.failFirst["GET /decoder/"+testDecoder+"/1"] = 5
		client := newTestClient(t, srv, afero.NewMemMapFs(), func(o *Options) { o.MaxRetries = 1 })

		err := client.ClearQueue(testContext(t))
		require.Error(t, err, "ClearQueue should fail")
		assert.True(t, errors.Is(err, remote.ErrTransport), "error should be a transport error, got %v", err)
		assert.Equal(t, 2, site.hitCount("GET /decoder/"+testDecoder+"/1"), "request should be sent once plus one retry")
	})

	t.Run("replays_post_bodies", func(t *testing.T) {
		site, srv := newFakeSite(t)
		site.failFirst["POST /login"] = 1
		client := newTestClient(t, srv, afero.NewMemMapFs(), func(o *Options) { o.MaxRetries = 2 })

		require.NoError(t, client.Login(testContext(t), testUser, testPassword), "Login should succeed after a retried POST")
		assert.Equal(t, 2, site.hitCount("POST /login"), "login POST should be replayed")
	})
}

func TestCheckRetry(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		status    int
		err       error
		wantRetry bool
		wantErr   bool
	}{
		{name: "network_error", ctx: context.Background(), err: io.ErrUnexpectedEOF, wantRetry: true},
		{name: "too_many_requests", ctx: context.Background(), status: http.StatusTooManyRequests, wantRetry: true},
		{name: "bad_gateway", ctx: context.Background(), status: http.StatusBadGateway, wantRetry: true},
		{name: "gateway_timeout", ctx: context.Background(), status: http.StatusGatewayTimeout, wantRetry: true},
		{name: "not_found", ctx: context.Background(), status: http.StatusNotFound},
		{name: "not_implemented", ctx: context.Background(), status: http.StatusNotImplemented},
		{name: "ok", ctx: context.Background(), status: http.StatusOK},
		{name: "canceled", ctx: canceled, err: io.ErrUnexpectedEOF, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.err == nil {
				resp = &http.Response{StatusCode: tt.status}
			}
			retry, err := checkRetry(tt.ctx, resp, tt.err)
			assert.Equal(t, tt.wantRetry, retry, "retry decision should match")
			if tt.wantErr {
				assert.Error(t, err, "a canceled context should stop retries")
			} else {
				assert.NoError(t, err, "checkRetry should succeed")
			}
		})
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err, "New should reject a malformed base url")
}
