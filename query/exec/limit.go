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

package exec

import (
	"fmt"

	"github.com/ebay/akgraph/query/pipeline"
)

// window passes through a contiguous range of the rows it sees.
type window struct {
	unary
	// seen counts the input rows so far. It's not cleared by Reset, so that a
	// restarted processor doesn't emit its range twice.
	seen uint64
}

// emit writes the rows of the current input batch with absolute positions
// in [from, to).
func (w *window) emit(from, to uint64) error {
	if !w.in.Port.HasData() {
		return nil
	}
	in := w.in.Dataframe()
	n := uint64(in.RowCount())
	base := w.seen
	w.seen += n
	start, end := base, base+n
	if start < from {
		start = from
	}
	if end > to {
		end = to
	}
	if start < end {
		lo, hi := int(start-base), int(end-base)
		keep := make([]bool, n)
		for i := lo; i < hi; i++ {
			keep[i] = true
		}
		out := w.out.Dataframe()
		for _, c := range out.Cols() {
			col, err := column(in, c.Tag)
			if err != nil {
				return err
			}
			if hi-lo < int(n) {
				col = col.Filter(keep)
			}
			c.Col = col
		}
		w.out.Port.WriteData()
	}
	w.in.Port.Consume()
	return nil
}

func newWindow(p *pipeline.Pipeline, self pipeline.Processor, w *window, upstream *pipeline.OutputInterface) error {
	if err := w.init(p, self, pipeline.BlockInterface, pipeline.BlockInterface, upstream); err != nil {
		return err
	}
	w.forwardShape()
	return nil
}

// Skip drops the first Count rows.
type Skip struct {
	window
	count uint64
}

// NewSkip creates a Skip processor.
func NewSkip(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, count uint64) (*Skip, error) {
	s := &Skip{count: count}
	if err := newWindow(p, s, &s.window, upstream); err != nil {
		return nil, err
	}
	return s, nil
}

// Describe implements pipeline.Processor.
func (s *Skip) Describe() string {
	return fmt.Sprintf("Skip %d", s.count)
}

// Execute implements pipeline.Processor.
func (s *Skip) Execute() error {
	if err := s.emit(s.count, ^uint64(0)); err != nil {
		return err
	}
	s.finishIfDone()
	return nil
}

// Limit passes at most Count rows. Rows after the limit are consumed and
// dropped, so the upstream processors still run to completion.
type Limit struct {
	window
	count uint64
}

// NewLimit creates a Limit processor.
func NewLimit(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, count uint64) (*Limit, error) {
	l := &Limit{count: count}
	if err := newWindow(p, l, &l.window, upstream); err != nil {
		return nil, err
	}
	return l, nil
}

// Describe implements pipeline.Processor.
func (l *Limit) Describe() string {
	return fmt.Sprintf("Limit %d", l.count)
}

// Execute implements pipeline.Processor.
func (l *Limit) Execute() error {
	if err := l.emit(0, l.count); err != nil {
		return err
	}
	l.finishIfDone()
	return nil
}
