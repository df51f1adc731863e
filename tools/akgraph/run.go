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
	"context"
	"fmt"
	"io"

	"github.com/ebay/akgraph/query"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exec"
	"github.com/ebay/akgraph/util/table"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

// run executes the query and prints its results as a table, followed by the
// row count and any changes made to the graph.
func run(ctx context.Context, engine *query.Engine, q *ast.Query, options *options,
	text string, out, debugOut io.Writer) error {

	var rows [][]string
	collect := func(df *dataframe.Dataframe) error {
		for i := 0; i < df.RowCount(); i++ {
			row := make([]string, df.Size())
			for c, col := range df.Cols() {
				row[c] = dataframe.FormatValue(col.Col.ValueAt(i))
			}
			rows = append(rows, row)
		}
		return nil
	}
	opts := query.Options{Text: text}
	if options.Debug {
		opts.Debug = true
		opts.DebugOut = debugOut
	}
	res, err := engine.Query(ctx, q, opts, collect)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}
	if len(res.Columns) > 0 {
		table.PrettyPrint(out, append([][]string{res.Columns}, rows...), table.HeaderRow)
		fmt.Fprintln(out)
	}
	if res.Rows == 1 {
		fmt.Fprintln(out, "1 row")
	} else {
		fmtr.Fprintf(out, "%d rows\n", res.Rows)
	}
	if res.Writes != (exec.WriteStats{}) {
		fmt.Fprintf(out, "Changes: %v\n", res.Writes)
	}
	return nil
}
