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

// Package config contains the configuration for the akgraph query engine and
// its tools. The configuration is typically loaded from a JSON file on disk.
package config

import (
	"fmt"
	"time"

	multierror "github.com/hashicorp/go-multierror"
)

// DefaultBatchSize is used when Query.BatchSize is not set.
const DefaultBatchSize = 1024

// Config describes the configuration of a query engine.
type Config struct {
	// Settings that affect planning and execution of every query.
	Query Query `json:"query"`

	// Logging setup. Applied by main packages via debuglog.Configure.
	Logging Logging `json:"logging"`

	// Prometheus metrics setup.
	Metrics Metrics `json:"metrics"`
}

// Query contains settings for query processing.
type Query struct {
	// The maximum number of rows a scan emits in a single batch. Defaults to
	// DefaultBatchSize.
	BatchSize int `json:"batchSize,omitempty"`

	// If set, queries that run longer than this are aborted. The check happens
	// between scheduler cycles. Uses Go duration syntax, such as "30s".
	Timeout Duration `json:"timeout,omitempty"`

	// If true, a debug report is written for every query.
	DebugReports bool `json:"debugReports,omitempty"`

	// Where debug reports and failed plan diagrams are written. Defaults to
	// os.TempDir().
	DebugDir string `json:"debugDir,omitempty"`
}

// Logging contains settings for the logrus logger.
type Logging struct {
	// One of "trace", "debug", "info", "warn", "error". Defaults to "info".
	Level string `json:"level,omitempty"`
	// If true, highlight log output with ANSI colors.
	ForceColors bool `json:"forceColors,omitempty"`
}

// Metrics contains settings for Prometheus metrics.
type Metrics struct {
	// Prefix for all metric names. Defaults to "akgraph".
	Namespace string `json:"namespace,omitempty"`
}

// EffectiveBatchSize returns the batch size to use, applying the default.
func (q *Query) EffectiveBatchSize() int {
	if q.BatchSize == 0 {
		return DefaultBatchSize
	}
	return q.BatchSize
}

// Validate checks the configuration for values that can never work. It reports
// all the problems it finds, not just the first.
func (cfg *Config) Validate() error {
	var errs *multierror.Error
	if cfg.Query.BatchSize < 0 {
		errs = multierror.Append(errs,
			fmt.Errorf("query.batchSize must not be negative, got %d", cfg.Query.BatchSize))
	}
	if cfg.Query.Timeout.Duration < 0 {
		errs = multierror.Append(errs,
			fmt.Errorf("query.timeout must not be negative, got %v", cfg.Query.Timeout))
	}
	switch cfg.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs,
			fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error", cfg.Logging.Level))
	}
	return errs.ErrorOrNil()
}

// Duration is a time.Duration that is encoded in JSON as a string, like "1m30s".
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.Duration.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("duration must be a string like \"30s\", got %s", s)
	}
	parsed, err := time.ParseDuration(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
