// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load(t *testing.T) {
	dir := t.TempDir()
	write := func(name, contents string) string {
		filename := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(filename, []byte(contents), 0644))
		return filename
	}

	t.Run("file not found", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "404.json"))
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "404.json")
		}
	})

	t.Run("file contains garbage", func(t *testing.T) {
		_, err := Load(write("garbage.json", "koala"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^error decoding JSON value in .*/garbage\.json: `, err.Error())
		}
	})

	t.Run("file contains null", func(t *testing.T) {
		_, err := Load(write("null.json", "null"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^loading .*/null\.json resulted in nil config$`, err.Error())
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Load(write("unknown.json", `{"roflcopter": true}`))
		if assert.Error(t, err) {
			assert.Regexp(t, `^error decoding JSON value in .*/unknown\.json: `, err.Error())
		}
	})

	t.Run("more", func(t *testing.T) {
		_, err := Load(write("more.json", "{}{}"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^found unexpected data after config in .*/more\.json$`, err.Error())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := Load(write("invalid.json", `{
			"query": {"batchSize": -1},
			"logging": {"level": "loud"}
		}`))
		if assert.Error(t, err) {
			assert.Regexp(t, `^invalid config in .*/invalid\.json: `, err.Error())
			assert.Contains(t, err.Error(), "query.batchSize must not be negative, got -1")
			assert.Contains(t, err.Error(), `logging.level "loud" is not one of`)
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(write("duration.json", `{"query": {"timeout": 30}}`))
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), `duration must be a string like "30s", got 30`)
		}
	})

	t.Run("ok", func(t *testing.T) {
		cfg, err := Load(write("ok.json", `{
			"query": {"batchSize": 16, "timeout": "1m30s", "debugReports": true},
			"logging": {"level": "debug"}
		}`))
		if assert.NoError(t, err) {
			assert.Equal(t, 16, cfg.Query.EffectiveBatchSize())
			assert.Equal(t, 90*time.Second, cfg.Query.Timeout.Duration)
			assert.True(t, cfg.Query.DebugReports)
			assert.Equal(t, "debug", cfg.Logging.Level)
		}
	})
}

func Test_EffectiveBatchSize(t *testing.T) {
	q := Query{}
	assert.Equal(t, DefaultBatchSize, q.EffectiveBatchSize())
	q.BatchSize = 7
	assert.Equal(t, 7, q.EffectiveBatchSize())
}

func Test_Write(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{Query: Query{BatchSize: 8, Timeout: Duration{time.Second}}}
	filename := filepath.Join(dir, "ok.json")
	require.NoError(t, Write(cfg, filename))
	loaded, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	// Simulate an error from encoder.Encode().
	marshalJSONErr = errors.New("ants in pants")
	err = Write(&Config{}, filepath.Join(dir, "ants.json"))
	marshalJSONErr = nil
	if assert.Error(t, err) {
		assert.Regexp(t, `^failed to write .*/ants\.json: .*ants in pants`, err.Error())
	}

	// Errors from os.Create already include the filename.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0755))
	err = Write(&Config{}, filepath.Join(dir, "subdir"))
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "subdir")
	}
}

// Controls the returned error of Metrics.MarshalJSON.
var marshalJSONErr error

// This is a custom marshaller for Metrics (used only in unit tests). It
// normally encodes itself successfully, but if 'marshalJSONErr' is non-nil, it
// returns this error instead.
func (m Metrics) MarshalJSON() ([]byte, error) {
	if marshalJSONErr != nil {
		return nil, marshalJSONErr
	}
	return json.Marshal(struct {
		Namespace string `json:"namespace,omitempty"`
	}{m.Namespace})
}
