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

package remote

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/easy4us/pkg/config"
)

type nopClient struct{}

func (nopClient) Login(context.Context, string, string) error { return nil }
func (nopClient) Upload(context.Context, string, []string) (UploadResult, error) {
	return UploadResult{}, nil
}
func (nopClient) DownloadDecoded(context.Context, string) ([]string, error) { return nil, nil }
func (nopClient) ClearQueue(context.Context) error                           { return nil }
func (nopClient) Close() error                                                { return nil }

func TestNewClient(t *testing.T) {
	RegisterClient("nop", func(ctx context.Context, cfg *config.Config, fs afero.Fs) (Client, error) {
		return nopClient{}, nil
	})
	t.Cleanup(func() { delete(registry, "nop") })

	client, err := NewClient(context.Background(), "nop", config.Default(), afero.NewMemMapFs())
	require.NoError(t, err, "NewClient should succeed")
	assert.NotNil(t, client, "client should be returned")

	_, err = NewClient(context.Background(), "missing", config.Default(), afero.NewMemMapFs())
	require.Error(t, err, "unknown client should fail")
	assert.Contains(t, err.Error(), "nop", "error should list registered names")
}

func TestUploadResult(t *testing.T) {
	empty := UploadResult{Failed: []string{"a.php"}}
	assert.False(t, empty.HasSuccess(), "failures only should not count as success")

	res := UploadResult{Succeeded: []string{"a.php", "c.php"}, Failed: []string{"b.php"}}
	assert.True(t, res.HasSuccess(), "result with successes should report success")
	assert.Equal(t, map[string]bool{"a.php": true, "c.php": true}, res.SucceededSet(), "set should hold successes")
}
