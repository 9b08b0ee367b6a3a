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
	"bytes"
	"context"
	"testing"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/easy4us/pkg/report"
	"gitlab.com/tozd/go/errors"
)

type stubOperation struct {
	rep *report.Report
	err error
}

func (s stubOperation) Execute(ctx context.Context) (*report.Report, error) {
	return s.rep, s.err
}

func TestRunner(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	logger := zerolog.New(zerolog.NewTestWriter(t))

	t.Run("renders_and_writes_report", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		var out bytes.Buffer

		rep := report.New("/src", "/dst", "ic11php72")
		rep.Decoded = 2
		rep.AddNotDecoded("/src/b.php")
		rep.Finish()

		got, err := NewRunner(&logger, &out, fs, "/reports/run.json").Run(testContext(t), stubOperation{rep: rep})
		require.NoError(t, err, "run should succeed")
		assert.Same(t, rep, got, "report should be returned")

		assert.Contains(t, out.String(), "Decoding complete", "summary should be rendered")
		assert.Contains(t, out.String(), "/src/b.php", "not decoded files should be listed")

		data, err := afero.ReadFile(fs, "/reports/run.json")
		require.NoError(t, err, "report file should be written")
		assert.Contains(t, string(data), `"/src/b.php"`, "report file should list not decoded files")
	})

	t.Run("report_file_write_fails", func(t *testing.T) {
		var out bytes.Buffer
		rep := report.New("/src", "/dst", "ic11php72")
		rep.Decoded = 1
		rep.Finish()

		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
		got, err := NewRunner(&logger, &out, fs, "/reports/run.json").Run(testContext(t), stubOperation{rep: rep})
		require.NoError(t, err, "a completed run should succeed even when the report file cannot be written")
		assert.Same(t, rep, got, "report should be returned")
		assert.Contains(t, out.String(), "Decoding complete", "summary should still be rendered")

		exists, _ := afero.Exists(fs, "/reports/run.json")
		assert.False(t, exists, "report file should not exist")
	})

	t.Run("operation_error_without_report", func(t *testing.T) {
		var out bytes.Buffer
		boom := errors.Base("boom")

		got, err := NewRunner(&logger, &out, afero.NewMemMapFs(), "").Run(testContext(t), stubOperation{err: boom})
		assert.ErrorIs(t, err, boom, "operation error should be returned")
		assert.Nil(t, got, "no report should be returned")
		assert.Empty(t, out.String(), "nothing should be rendered")
	})

	t.Run("operation_error_with_report", func(t *testing.T) {
		var out bytes.Buffer
		boom := errors.Base("boom")
		rep := report.New("/src", "/dst", "ic11php72")
		rep.Finish()

		got, err := NewRunner(nil, &out, afero.NewMemMapFs(), "").Run(testContext(t), stubOperation{rep: rep, err: boom})
		assert.ErrorIs(t, err, boom, "operation error should be returned")
		assert.NotNil(t, got, "report should still be returned")
		assert.NotEmpty(t, out.String(), "partial report should be rendered")
	})
}
