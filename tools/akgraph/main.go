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

// Command akgraph plans and runs graph queries against a dataset held in
// memory. Queries are written as YAML statement lists.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	docopt "github.com/docopt/docopt-go"
	"github.com/ebay/akgraph/config"
	"github.com/ebay/akgraph/graph/memgraph"
	"github.com/ebay/akgraph/query"
	"github.com/ebay/akgraph/query/ast/astyaml"
	"github.com/ebay/akgraph/util/debuglog"
	"github.com/ebay/akgraph/util/graphviz"
	metricsutil "github.com/ebay/akgraph/util/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const usage = `akgraph is a command-line tool for planning and running graph queries
against a dataset held in memory.

Usage:
  akgraph [--config=FILE] explain [--data=FILE] QUERYFILE
  akgraph [--config=FILE] run [--data=FILE] [--debug] [--timeout=DUR] QUERYFILE
  akgraph [--config=FILE] dot [--data=FILE] QUERYFILE OUTFILE

Options:
  --config=FILE             JSON configuration file.
  --data=FILE               YAML dataset to load. Without one, queries run against an empty graph.
  --debug                   Write a query debug report to standard error.
  -t=DUR, --timeout=DUR     Abort the query after this long, overriding the configuration.

Examples:
  # Show the plan and pipeline for a query.
  akgraph explain --data people.yaml knows.yaml

  # Run a query and print its results.
  akgraph run --data people.yaml --timeout 10s knows.yaml

  # Draw the plan. The output format comes from the file extension.
  akgraph dot --data people.yaml knows.yaml plan.svg
`

type options struct {
	ConfigFile    string `docopt:"--config"`
	DataFile      string `docopt:"--data"`
	Debug         bool   `docopt:"--debug"`
	TimeoutString string `docopt:"--timeout"`
	// Zero unless --timeout was given.
	QueryTimeout time.Duration

	Explain bool `docopt:"explain"`
	Run     bool `docopt:"run"`
	Dot     bool `docopt:"dot"`

	QueryFile string `docopt:"QUERYFILE"`
	OutFile   string `docopt:"OUTFILE"`
}

func parseArgs(argv []string) (*options, error) {
	parser := &docopt.Parser{HelpHandler: docopt.NoHelpHandler}
	opts, err := parser.ParseArgs(usage, argv, "")
	if err != nil {
		return nil, errors.Wrap(err, "error parsing command-line arguments")
	}
	var options options
	err = opts.Bind(&options)
	if err != nil {
		return nil, errors.Wrapf(err, "error binding command-line arguments from: %+v", opts)
	}
	if options.TimeoutString != "" {
		options.QueryTimeout, err = time.ParseDuration(options.TimeoutString)
		if err != nil {
			return nil, errors.Wrap(err, "unable to parse timeout value")
		}
		if options.QueryTimeout <= 0 {
			return nil, fmt.Errorf("timeout must be positive, got %v", options.QueryTimeout)
		}
	}
	return &options, nil
}

func loadConfig(options *options) (*config.Config, error) {
	if options.ConfigFile == "" {
		return new(config.Config), nil
	}
	return config.Load(options.ConfigFile)
}

// printUsage writes the usage text, which ends with a newline, to w.
func printUsage(w io.Writer) {
	fmt.Fprint(w, usage)
}

func main() {
	debuglog.Configure(debuglog.Options{})
	options, err := parseArgs(os.Args[1:])
	if err != nil {
		printUsage(os.Stderr)
		log.Fatalf("%v", err)
	}
	cfg, err := loadConfig(options)
	if err != nil {
		log.Fatalf("Unable to load configuration: %v", err)
	}
	debuglog.Configure(debuglog.Options{
		ForceColors: cfg.Logging.ForceColors,
		Level:       cfg.Logging.Level,
	})
	err = runCommand(context.Background(), options, cfg, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// runCommand executes the subcommand given by options. Output goes to out,
// and debug reports go to debugOut.
func runCommand(ctx context.Context, options *options, cfg *config.Config, out, debugOut io.Writer) error {
	g := memgraph.New()
	if options.DataFile != "" {
		var err error
		g, err = memgraph.LoadYAMLFile(options.DataFile)
		if err != nil {
			return err
		}
	}
	text, err := os.ReadFile(options.QueryFile)
	if err != nil {
		return errors.Wrap(err, "unable to read query")
	}
	q, err := astyaml.ParseFile(options.QueryFile, g)
	if err != nil {
		return err
	}
	queryCfg := cfg.Query
	if options.QueryTimeout > 0 {
		queryCfg.Timeout.Duration = options.QueryTimeout
	}
	engine := query.New(queryCfg, query.Database{
		View:    g,
		Writer:  g,
		Catalog: memgraph.NewCatalog(filepath.Dir(options.QueryFile)),
	}, metricsutil.Registry{R: prometheus.NewRegistry(), Namespace: cfg.Metrics.Namespace})

	switch {
	case options.Explain:
		x, err := engine.Explain(q)
		if err != nil {
			return errors.Wrap(err, "error explaining query")
		}
		fmt.Fprint(out, x)
		return nil

	case options.Dot:
		plan, err := engine.Plan(q)
		if err != nil {
			return errors.Wrap(err, "error planning query")
		}
		err = graphviz.Create(options.OutFile, plan.Graphviz, graphviz.Options{})
		if err != nil {
			return errors.Wrapf(err, "unable to write %v", options.OutFile)
		}
		fmt.Fprintf(out, "Plan written to %v\n", options.OutFile)
		return nil

	case options.Run:
		return run(ctx, engine, q, options, string(text), out, debugOut)
	}
	return fmt.Errorf("no command given")
}
