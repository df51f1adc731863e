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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ebay/akgraph/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleData = "../../graph/memgraph/testdata/people.yaml"

func Test_parseArgs(t *testing.T) {
	tests := []struct {
		args   string
		exp    options
		expErr string
	}{
		{
			args: "explain --data d.yaml q.yaml",
			exp:  options{Explain: true, DataFile: "d.yaml", QueryFile: "q.yaml"},
		},
		{
			args: "--config c.json run --debug -t 2s q.yaml",
			exp: options{
				Run:           true,
				ConfigFile:    "c.json",
				Debug:         true,
				TimeoutString: "2s",
				QueryTimeout:  2 * time.Second,
				QueryFile:     "q.yaml",
			},
		},
		{
			args: "dot q.yaml plan.svg",
			exp:  options{Dot: true, QueryFile: "q.yaml", OutFile: "plan.svg"},
		},
		{
			args:   "run --timeout soon q.yaml",
			expErr: "unable to parse timeout value",
		},
		{
			args:   "run --timeout 0s q.yaml",
			expErr: "timeout must be positive",
		},
		{
			args:   "explain",
			expErr: "error parsing command-line arguments",
		},
	}
	for _, test := range tests {
		t.Run(test.args, func(t *testing.T) {
			options, err := parseArgs(strings.Fields(test.args))
			if test.expErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.exp, *options)
		})
	}
}

func Test_printUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	assert.Equal(t, usage, buf.String())
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.False(t, strings.HasSuffix(buf.String(), "\n\n"))
}

func Test_loadConfig(t *testing.T) {
	cfg, err := loadConfig(&options{})
	require.NoError(t, err)
	assert.Equal(t, new(config.Config), cfg)

	filename := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(filename, []byte(`{"query": {"batchSize": 2}}`), 0644))
	cfg, err = loadConfig(&options{ConfigFile: filename})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Query.BatchSize)
}

func runArgs(t *testing.T, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()
	options, err := parseArgs(args)
	require.NoError(t, err)
	var out, debugOut bytes.Buffer
	err = runCommand(context.Background(), options, cfg, &out, &debugOut)
	return out.String(), debugOut.String(), err
}

func Test_runCommand_run(t *testing.T) {
	out, debugOut, err := runArgs(t, new(config.Config), "run", "--data", peopleData, "testdata/knows.yaml")
	require.NoError(t, err)
	assert.Equal(t, `
 from    | to    |
 ------- | ----- |
 "Alice" | "Bob" |

1 row
`, "\n"+out)
	assert.Empty(t, debugOut)
}

func Test_runCommand_runDebug(t *testing.T) {
	cfg := &config.Config{Query: config.Query{BatchSize: 1}}
	_, debugOut, err := runArgs(t, cfg, "run", "--debug", "--data", peopleData, "testdata/knows.yaml")
	require.NoError(t, err)
	assert.Contains(t, debugOut, "Query:\n- match:\n")
	assert.Contains(t, debugOut, "\nQuery Execution Summary:\n")
}

func Test_runCommand_write(t *testing.T) {
	out, _, err := runArgs(t, new(config.Config), "run", "--data", peopleData, "testdata/hire.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "0 rows\nChanges: nodes created: 1, edges created: 1,")
}

func Test_runCommand_emptyGraph(t *testing.T) {
	// Without a dataset, the labels in the query don't resolve.
	_, _, err := runArgs(t, new(config.Config), "run", "testdata/knows.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown label "Person"`)
}

func Test_runCommand_explain(t *testing.T) {
	out, _, err := runArgs(t, new(config.Config), "explain", "--data", peopleData, "testdata/knows.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Plan (fingerprint "), out)
	assert.Contains(t, out, "\nPipeline:\n#0 ")
}

func Test_runCommand_dot(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "plan.dot")
	out, _, err := runArgs(t, new(config.Config), "dot", "--data", peopleData, "testdata/knows.yaml", filename)
	require.NoError(t, err)
	assert.Equal(t, "Plan written to "+filename+"\n", out)
	dot, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(dot), "digraph plan {\n"))
}
