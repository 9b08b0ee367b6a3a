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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/easy4us/cmd/easy4us/opts"
)

const encodedHeader = "<?php //0046a\nif(!extension_loaded('ionCube Loader')){die('The file requires the ionCube PHP Loader');}\n"

func newTestOpts(t *testing.T) (*opts.RootOpts, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err, "opening null device should succeed")
	t.Cleanup(func() { stdin.Close() })

	o := &opts.RootOpts{
		Viper:  opts.NewViper(),
		Fs:     afero.NewOsFs(),
		Stdin:  stdin,
		Stdout: &stdout,
		Stderr: &bytes.Buffer{},
	}
	t.Cleanup(func() { _ = o.Close() })
	return o, &stdout
}

func execute(t *testing.T, o *opts.RootOpts, args ...string) error {
	t.Helper()
	cmd := newRootCmd(o)
	cmd.SetArgs(args)
	cmd.SetOut(o.Stdout)
	cmd.SetErr(o.Stderr)
	return cmd.ExecuteContext(context.Background())
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "creating dir should succeed")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "writing fixture should succeed")
	}
	return root
}

func TestVersionCommand(t *testing.T) {
	o, stdout := newTestOpts(t)

	require.NoError(t, execute(t, o, "version"), "version should succeed")
	assert.Contains(t, stdout.String(), "easy4us version info", "version banner should be printed")
	assert.Nil(t, o.Config, "version should not resolve configuration")
}

func TestScanCommand(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	src := writeTree(t, map[string]string{
		"a.php":         encodedHeader,
		"lib/b.php":     encodedHeader,
		"readme.txt":    "hello",
		"vendor/c.php":  encodedHeader,
		"lib/plain.php": "<?php echo 1;",
	})
	dst := filepath.Join(t.TempDir(), "out")
	reportPath := filepath.Join(t.TempDir(), "scan.json")

	o, stdout := newTestOpts(t)
	err := execute(t, o, "scan", "-s", src, "-o", dst, "--exclude", "vendor/**", "--report", reportPath)
	require.NoError(t, err, "scan should succeed")

	assert.Contains(t, stdout.String(), "Scan complete", "summary should be rendered")
	assert.Contains(t, stdout.String(), src+" -> "+dst, "header should be printed by the console from the command context")
	assert.NotEmpty(t, o.RunID, "run id should be set")

	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err), "scan should not create the destination")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err, "report should be written")
	assert.Contains(t, string(data), `"encoded_found": 2`, "excluded file should not be counted")
	assert.Contains(t, string(data), o.RunID, "report should carry the run id")
}

func TestScanCommandFromEnv(t *testing.T) {
	src := writeTree(t, map[string]string{"a.php": encodedHeader})
	t.Setenv("EASY4US_SOURCE", src)
	t.Setenv("EASY4US_DESTINATION", filepath.Join(t.TempDir(), "out"))

	o, _ := newTestOpts(t)
	require.NoError(t, execute(t, o, "scan"), "scan should succeed")
	assert.Equal(t, src, o.Config.Source, "source should come from the environment")
}

func TestCommandErrors(t *testing.T) {
	src := writeTree(t, map[string]string{"a.php": encodedHeader})

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "scan_without_source", args: []string{"scan"}, wantErr: "source is required"},
		{name: "decode_without_username", args: []string{"decode", "-s", src, "-o", src + "_out"}, wantErr: "username is required"},
		{name: "decode_without_password", args: []string{"decode", "-s", src, "-o", src + "_out", "-u", "me"}, wantErr: "password is required"},
		{name: "bad_decoder", args: []string{"scan", "-s", src, "-d", "nope"}, wantErr: "invalid decoder version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newTestOpts(t)
			err := execute(t, o, tt.args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLogFile(t *testing.T) {
	src := writeTree(t, map[string]string{"a.txt": "plain"})
	logPath := filepath.Join(t.TempDir(), "run.log")

	o, _ := newTestOpts(t)
	require.NoError(t, execute(t, o, "scan", "-s", src, "-o", src+"_out", "--log-file", logPath), "scan should succeed")
	require.NoError(t, o.Close(), "closing log file should succeed")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err, "log file should exist")
	assert.Contains(t, string(data), `"run_id":"`+o.RunID+`"`, "log records should carry the run id")
}

func TestFormatVersion(t *testing.T) {
	out := FormatVersion(&VersionInfo{Version: "v1.2.3", Revision: "abc123", Modified: true, GoVersion: "go1.23", Platform: "linux/amd64"})
	assert.Contains(t, out, "Version:   v1.2.3", "version should be printed")
	assert.Contains(t, out, "abc123 (modified)", "dirty builds should be flagged")
}
