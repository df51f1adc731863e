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

package pipeline

import (
	"context"
	"time"

	"github.com/ebay/akgraph/graph"
)

// Processor is a physical operator. Processors are created by a Pipeline and
// driven by an Executor, which calls Prepare once before the first Execute,
// and Reset before executing a processor again after it finished.
//
// Implementations embed Base, which holds the ports and the scheduling state.
type Processor interface {
	// Describe returns a short human-readable description.
	Describe() string
	// Prepare is called once, before the first call to Execute.
	Prepare(ctx *ExecContext) error
	// Execute consumes the available inputs and writes the outputs. It calls
	// Finish when the processor has nothing more to produce.
	Execute() error
	// Reset is called when a finished processor is executed again.
	Reset() error

	base() *Base
}

// ExecContext carries what processors need from the outside world.
type ExecContext struct {
	Context context.Context
	View    graph.View
	// Writer is nil for read-only queries.
	Writer graph.Writer
	// Catalog is nil unless graph administration commands are allowed.
	Catalog graph.Catalog
	// BatchSize is the maximum number of rows sources emit per batch.
	BatchSize int
}

// DefaultBatchSize is used when ExecContext.BatchSize is not set.
const DefaultBatchSize = 1024

// MaxBatch returns the configured batch size, or DefaultBatchSize.
func (ctx *ExecContext) MaxBatch() int {
	if ctx.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return ctx.BatchSize
}

// OpStats counts what a processor did during execution.
type OpStats struct {
	Executions int
	// RowsIn counts the rows of the input batches available at each
	// execution.
	RowsIn int
	// Batches and RowsOut count the batches written to the outputs.
	Batches int
	RowsOut int
	Elapsed time.Duration
}

// Base holds the state common to all processors. Embed it to implement
// Processor.
type Base struct {
	id        int
	inputs    []*InputPort
	outputs   []*OutputPort
	prepared  bool
	finished  bool
	scheduled bool
	// stacked is true while the processor is on the executor's active stack.
	stacked bool
	stats   OpStats
}

func (b *Base) base() *Base {
	return b
}

// ID returns the processor's index in its pipeline.
func (b *Base) ID() int {
	return b.id
}

// Inputs returns the processor's input ports in order.
func (b *Base) Inputs() []*InputPort {
	return b.inputs
}

// Outputs returns the processor's output ports in order.
func (b *Base) Outputs() []*OutputPort {
	return b.outputs
}

// IsSource returns true for processors without inputs.
func (b *Base) IsSource() bool {
	return len(b.inputs) == 0
}

// IsSink returns true for processors without outputs.
func (b *Base) IsSink() bool {
	return len(b.outputs) == 0
}

// IsPrepared returns true once Prepare has been called.
func (b *Base) IsPrepared() bool {
	return b.prepared
}

// IsFinished returns true after Finish, until the processor is reset.
func (b *Base) IsFinished() bool {
	return b.finished
}

// Stats returns what the processor did so far.
func (b *Base) Stats() OpStats {
	return b.stats
}

// Prepare implements Processor with a no-op.
func (b *Base) Prepare(*ExecContext) error {
	return nil
}

// Reset implements Processor with a no-op.
func (b *Base) Reset() error {
	return nil
}

// Finish marks the processor as done and closes its outputs. Any data
// written in the same execution is still delivered.
func (b *Base) Finish() {
	b.finished = true
	for _, out := range b.outputs {
		out.buf.closed = true
	}
}

// InputsDone returns true if every input's producer finished and all of
// their data has been consumed.
func (b *Base) InputsDone() bool {
	for _, in := range b.inputs {
		if !in.Done() {
			return false
		}
	}
	return true
}

// CanExecute returns true if every input has data, doesn't need any, or
// will never get any more; and every output is free to be written. A
// processor with inputs also needs at least one of them to have data or be
// closed, so that optional inputs alone never make it runnable. A finished
// processor can only execute again if new data arrived.
func (b *Base) CanExecute() bool {
	newData := false
	pending := len(b.inputs) == 0
	for _, in := range b.inputs {
		switch {
		case in.HasData():
			newData = true
			pending = true
		case in.Closed():
			pending = true
		case in.needsData:
			return false
		}
	}
	if !pending {
		return false
	}
	for _, out := range b.outputs {
		if out.HasData() {
			return false
		}
	}
	if b.finished {
		return newData
	}
	return true
}

// markReset reopens the outputs of a finished processor.
func (b *Base) markReset() {
	b.finished = false
	for _, out := range b.outputs {
		out.buf.closed = false
	}
}
