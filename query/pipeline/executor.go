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

	"github.com/ebay/akgraph/util/clocks"
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ExecOptions tune an Executor.
type ExecOptions struct {
	// Clock measures processor time and the deadline. Defaults to clocks.Wall.
	Clock clocks.Source
	// If not zero, Run fails once the clock passes Deadline.
	Deadline time.Time
}

// Executor drives the processors of a pipeline on the calling goroutine.
//
// It keeps a stack of active processors, which may be able to run, and a
// queue of scheduled processors, which will run in this cycle. Each cycle
// picks one runnable processor off the stack, then runs the queue dry: each
// processor that runs schedules the consumers of the batches it wrote, and
// reactivates the producers whose batches it consumed.
type Executor struct {
	pipeline *Pipeline
	ctx      *ExecContext
	clock    clocks.Source
	deadline time.Time
	active   *arraystack.Stack
	queue    *linkedlistqueue.Queue
	cycles   int
}

// NewExecutor returns an executor with the pipeline's sources active.
func NewExecutor(p *Pipeline, ctx *ExecContext, opts ExecOptions) *Executor {
	if opts.Clock == nil {
		opts.Clock = clocks.Wall
	}
	if ctx.Context == nil {
		ctx.Context = context.Background()
	}
	e := &Executor{
		pipeline: p,
		ctx:      ctx,
		clock:    opts.Clock,
		deadline: opts.Deadline,
		active:   arraystack.New(),
		queue:    linkedlistqueue.New(),
	}
	sources := p.Sources()
	// Push in reverse so that the first source runs first.
	for i := len(sources) - 1; i >= 0; i-- {
		e.activate(sources[i])
	}
	return e
}

// Cycles returns the number of cycles run so far.
func (e *Executor) Cycles() int {
	return e.cycles
}

// Run executes cycles until no processor can make progress. It checks for
// cancellation and the deadline between cycles. The first error returned by
// a processor aborts the run.
func (e *Executor) Run() error {
	for {
		if err := e.ctx.Context.Err(); err != nil {
			return errors.Wrapf(err, "query aborted after %d cycles", e.cycles)
		}
		if !e.deadline.IsZero() && !e.clock.Now().Before(e.deadline) {
			return errors.Wrapf(context.DeadlineExceeded, "query aborted after %d cycles", e.cycles)
		}
		more, err := e.ExecuteCycle()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// ExecuteCycle runs one scheduling cycle. It returns false once there are no
// more active processors.
func (e *Executor) ExecuteCycle() (bool, error) {
	e.cycles++
	for !e.active.Empty() {
		v, _ := e.active.Pop()
		proc := v.(Processor)
		b := proc.base()
		b.stacked = false
		if b.scheduled || !b.CanExecute() {
			// A blocked processor is reactivated by whichever neighbor
			// unblocks it.
			continue
		}
		e.schedule(proc)
		break
	}
	for !e.queue.Empty() {
		v, _ := e.queue.Dequeue()
		proc := v.(Processor)
		b := proc.base()
		b.scheduled = false
		if !b.CanExecute() {
			if !b.finished {
				e.activate(proc)
			}
			continue
		}
		hadData := make([]bool, len(b.inputs))
		for i, in := range b.inputs {
			hadData[i] = in.HasData()
		}
		if err := e.execute(proc); err != nil {
			log.WithFields(log.Fields{
				"processor": proc.Describe(),
				"id":        b.id,
				"error":     err,
			}).Debug("Processor failed")
			return false, errors.Wrapf(err, "executing #%d %s", b.id, proc.Describe())
		}
		if !b.finished {
			e.activate(proc)
		}
		for i, in := range b.inputs {
			if hadData[i] && !in.HasData() && in.peer != nil {
				if up := in.peer.proc; !up.base().finished {
					e.activate(up)
				}
			}
		}
		for _, out := range b.outputs {
			if out.peer == nil {
				continue
			}
			down := out.peer.proc
			if !down.base().scheduled && down.base().CanExecute() {
				e.schedule(down)
			}
		}
	}
	return !e.active.Empty(), nil
}

// activate pushes the processor onto the active stack unless it's already
// there.
func (e *Executor) activate(proc Processor) {
	b := proc.base()
	if !b.stacked {
		b.stacked = true
		e.active.Push(proc)
	}
}

func (e *Executor) schedule(proc Processor) {
	proc.base().scheduled = true
	e.queue.Enqueue(proc)
}

// execute runs a single processor, preparing or resetting it first if
// needed, and updates its stats.
func (e *Executor) execute(proc Processor) error {
	b := proc.base()
	if !b.prepared {
		if err := proc.Prepare(e.ctx); err != nil {
			return err
		}
		b.prepared = true
	}
	if b.finished {
		b.markReset()
		if err := proc.Reset(); err != nil {
			return err
		}
	}
	for _, in := range b.inputs {
		if in.HasData() {
			b.stats.RowsIn += in.Dataframe().RowCount()
		}
	}
	start := e.clock.Now()
	err := proc.Execute()
	b.stats.Elapsed += e.clock.Now().Sub(start)
	b.stats.Executions++
	if err != nil {
		return err
	}
	for _, out := range b.outputs {
		if out.HasData() {
			b.stats.Batches++
			b.stats.RowsOut += out.Dataframe().RowCount()
		}
	}
	return nil
}
