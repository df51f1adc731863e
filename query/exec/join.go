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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// JoinKind selects how a HashJoin matches rows.
type JoinKind uint8

// Kinds of joins.
const (
	// JoinOnAncestor matches rows that agree on every column both sides
	// share. The output keeps the left side's stream.
	JoinOnAncestor JoinKind = iota + 1
	// JoinOnTarget additionally matches the node streams of both sides. The
	// output is a stream of those nodes.
	JoinOnTarget
)

func (k JoinKind) String() string {
	switch k {
	case JoinOnAncestor:
		return "ancestor"
	case JoinOnTarget:
		return "target"
	}
	return fmt.Sprintf("JoinKind(%d)", uint8(k))
}

// buildProbe holds the state shared by the two-input processors. The right side
// is read entirely first, while batches arriving on the left side are set
// aside; then the left side is streamed.
//
// Both sides often descend from the same fork, which can't write its next
// batch until both have consumed the last one. So the left side never blocks
// the build, and the right side is only required once the left side is
// exhausted.
type buildProbe struct {
	pipeline.Base
	lhs, rhs *pipeline.InputInterface
	out      *pipeline.OutputInterface
	// right accumulates the right side's rows.
	right *dataframe.Dataframe
	// held accumulates the left side's rows that arrived during the build.
	held  *dataframe.Dataframe
	built bool
}

func (b *buildProbe) init(p *pipeline.Pipeline, self pipeline.Processor, lhs, rhs *pipeline.OutputInterface) error {
	p.Add(self)
	b.lhs = &pipeline.InputInterface{Kind: pipeline.BlockInterface, Port: p.NewInput(self)}
	b.rhs = &pipeline.InputInterface{Kind: pipeline.BlockInterface, Port: p.NewInput(self)}
	if err := pipeline.Connect(lhs, b.lhs); err != nil {
		return err
	}
	if err := pipeline.Connect(rhs, b.rhs); err != nil {
		return err
	}
	b.out = &pipeline.OutputInterface{Kind: pipeline.BlockInterface, Port: p.NewOutput(self)}
	b.startBuild()
	return nil
}

func (b *buildProbe) startBuild() {
	b.right = b.rhs.Dataframe().CloneShape()
	b.held = b.lhs.Dataframe().CloneShape()
	b.built = false
	b.lhs.Port.SetNeedsData(false)
	b.rhs.Port.SetNeedsData(false)
}

// Output returns the processor's output interface.
func (b *buildProbe) Output() *pipeline.OutputInterface {
	return b.out
}

// Reset implements pipeline.Processor.
func (b *buildProbe) Reset() error {
	b.startBuild()
	return nil
}

// step consumes the available inputs. During the build it returns nil. Once
// the right side is complete, it calls build and returns the left rows to
// probe, if any.
func (b *buildProbe) step(build func() error) (*dataframe.Dataframe, error) {
	if b.built {
		if !b.lhs.Port.HasData() {
			return nil, nil
		}
		return b.lhs.Dataframe(), nil
	}
	if b.rhs.Port.HasData() {
		if err := appendRows(b.right, b.rhs.Dataframe()); err != nil {
			return nil, err
		}
		b.rhs.Port.Consume()
	}
	if b.lhs.Port.HasData() {
		if err := appendRows(b.held, b.lhs.Dataframe()); err != nil {
			return nil, err
		}
		b.lhs.Port.Consume()
	}
	if !b.rhs.Port.Done() {
		b.rhs.Port.SetNeedsData(b.lhs.Port.Done())
		return nil, nil
	}
	b.built = true
	b.lhs.Port.SetNeedsData(true)
	b.rhs.Port.SetNeedsData(false)
	if err := build(); err != nil {
		return nil, err
	}
	held := b.held
	b.held = nil
	if held.RowCount() == 0 {
		return nil, nil
	}
	return held, nil
}

// done consumes the left batch if it was probed, and finishes once both
// sides are exhausted.
func (b *buildProbe) done(probed *dataframe.Dataframe) {
	if probed != nil && probed == b.lhs.Dataframe() {
		b.lhs.Port.Consume()
	}
	if b.built && b.InputsDone() {
		b.Finish()
	}
}

// joinKey is a pair of columns whose values must be equal.
type joinKey struct {
	left, right dataframe.ColumnTag
}

// HashJoin is an inner join of two streams. Rows whose key holds a null
// never match.
type HashJoin struct {
	buildProbe
	kind JoinKind
	keys []joinKey
	// leftCols and rightCols are the output columns taken from each side.
	leftCols, rightCols []dataframe.ColumnTag
	buckets             map[uint64][]int
	digest              *xxhash.Digest
}

// NewHashJoin creates a join of two upstream interfaces. A target join
// requires both sides to carry a node stream.
func NewHashJoin(p *pipeline.Pipeline, lhs, rhs *pipeline.OutputInterface, kind JoinKind) (*HashJoin, error) {
	j := &HashJoin{kind: kind, digest: xxhash.New()}
	if err := j.init(p, j, lhs, rhs); err != nil {
		return nil, err
	}
	left, right := j.lhs.Dataframe(), j.rhs.Dataframe()
	for _, c := range right.Cols() {
		if left.Get(c.Tag) != nil {
			j.keys = append(j.keys, joinKey{c.Tag, c.Tag})
		}
	}
	var target joinKey
	switch kind {
	case JoinOnAncestor:
		j.out.Stream = j.lhs.Stream
	case JoinOnTarget:
		ls, rs := j.lhs.Stream, j.rhs.Stream
		if ls.Kind != pipeline.NodeStream || rs.Kind != pipeline.NodeStream {
			return nil, pipeline.Errorf("target join needs two node streams, got %v and %v", ls, rs)
		}
		target = joinKey{ls.NodeIDs, rs.NodeIDs}
		if target.left != target.right {
			j.keys = append(j.keys, target)
		}
		j.out.Stream = pipeline.NodeStreamOf(target.left)
	default:
		return nil, pipeline.Fatalf("unknown join kind %v", kind)
	}
	out := j.out.Dataframe()
	for _, c := range left.Cols() {
		if c.Tag != target.left {
			j.leftCols = append(j.leftCols, c.Tag)
			out.AddNew(c.Tag, c.Name)
		}
	}
	for _, c := range right.Cols() {
		if left.Get(c.Tag) == nil && c.Tag != target.right {
			j.rightCols = append(j.rightCols, c.Tag)
			out.AddNew(c.Tag, c.Name)
		}
	}
	if target.left.Valid() {
		j.leftCols = append(j.leftCols, target.left)
		out.AddNew(target.left, left.Get(target.left).Name)
	}
	return j, nil
}

// Kind returns the kind of the join.
func (j *HashJoin) Kind() JoinKind {
	return j.kind
}

// Describe implements pipeline.Processor.
func (j *HashJoin) Describe() string {
	return fmt.Sprintf("HashJoin %v on %v", j.kind, j.keys)
}

// Reset implements pipeline.Processor.
func (j *HashJoin) Reset() error {
	j.buckets = nil
	return j.buildProbe.Reset()
}

// Execute implements pipeline.Processor.
func (j *HashJoin) Execute() error {
	left, err := j.step(j.build)
	if err != nil {
		return err
	}
	if left != nil {
		if err := j.probe(left); err != nil {
			return err
		}
	}
	j.done(left)
	return nil
}

func (j *HashJoin) keyColumns(df *dataframe.Dataframe, right bool) ([]dataframe.Column, error) {
	cols := make([]dataframe.Column, len(j.keys))
	for i, k := range j.keys {
		tag := k.left
		if right {
			tag = k.right
		}
		col, err := column(df, tag)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return cols, nil
}

// hashRow returns the hash of a row's key, or false if the key holds a null.
func (j *HashJoin) hashRow(cols []dataframe.Column, row int) (uint64, bool) {
	j.digest.Reset()
	for _, col := range cols {
		v := col.ValueAt(row)
		if v == nil {
			return 0, false
		}
		hashValue(j.digest, v)
	}
	return j.digest.Sum64(), true
}

func (j *HashJoin) build() error {
	j.buckets = make(map[uint64][]int)
	if j.right.RowCount() == 0 {
		return nil
	}
	cols, err := j.keyColumns(j.right, true)
	if err != nil {
		return err
	}
	for row := 0; row < j.right.RowCount(); row++ {
		if h, ok := j.hashRow(cols, row); ok {
			j.buckets[h] = append(j.buckets[h], row)
		}
	}
	return nil
}

func (j *HashJoin) probe(left *dataframe.Dataframe) error {
	if len(j.buckets) == 0 {
		return nil
	}
	lkeys, err := j.keyColumns(left, false)
	if err != nil {
		return err
	}
	rkeys, err := j.keyColumns(j.right, true)
	if err != nil {
		return err
	}
	var lrows, rrows []int
	for row := 0; row < left.RowCount(); row++ {
		h, ok := j.hashRow(lkeys, row)
		if !ok {
			continue
		}
		for _, r := range j.buckets[h] {
			if keysEqual(lkeys, row, rkeys, r) {
				lrows = append(lrows, row)
				rrows = append(rrows, r)
			}
		}
	}
	if len(lrows) == 0 {
		return nil
	}
	out := j.out.Dataframe()
	for _, tag := range j.leftCols {
		col, err := column(left, tag)
		if err != nil {
			return err
		}
		out.Get(tag).Col = col.Gather(lrows)
	}
	for _, tag := range j.rightCols {
		col, err := column(j.right, tag)
		if err != nil {
			return err
		}
		out.Get(tag).Col = col.Gather(rrows)
	}
	j.out.Port.WriteData()
	return nil
}

func keysEqual(a []dataframe.Column, arow int, b []dataframe.Column, brow int) bool {
	for i := range a {
		x, y := a[i].ValueAt(arow), b[i].ValueAt(brow)
		if a[i].Kind() != b[i].Kind() || compareValues(x, y) != 0 {
			return false
		}
	}
	return true
}

// hashValue feeds a non-null column value into the digest. Each value is
// followed by a separator so that adjacent strings can't collide.
func hashValue(d *xxhash.Digest, v interface{}) {
	var buf [9]byte
	switch x := v.(type) {
	case uint64:
		binary.LittleEndian.PutUint64(buf[:8], x)
	case int64:
		binary.LittleEndian.PutUint64(buf[:8], uint64(x))
	case float64:
		binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(x))
	case bool:
		if x {
			buf[0] = 1
		}
	case string:
		d.WriteString(x)
	}
	buf[8] = 0xff
	d.Write(buf[:])
}

// CartesianProduct pairs every row of the left side with every row of the
// right side. The output keeps the left side's stream.
type CartesianProduct struct {
	buildProbe
	rightCols []dataframe.ColumnTag
}

// NewCartesianProduct creates a CartesianProduct of two upstream interfaces.
// Columns present on both sides are taken from the left.
func NewCartesianProduct(p *pipeline.Pipeline, lhs, rhs *pipeline.OutputInterface) (*CartesianProduct, error) {
	c := &CartesianProduct{}
	if err := c.init(p, c, lhs, rhs); err != nil {
		return nil, err
	}
	c.out.Stream = c.lhs.Stream
	out := c.out.Dataframe()
	for _, col := range c.lhs.Dataframe().Cols() {
		out.AddNew(col.Tag, col.Name)
	}
	for _, col := range c.rhs.Dataframe().Cols() {
		if out.Get(col.Tag) == nil {
			c.rightCols = append(c.rightCols, col.Tag)
			out.AddNew(col.Tag, col.Name)
		}
	}
	return c, nil
}

// Describe implements pipeline.Processor.
func (c *CartesianProduct) Describe() string {
	return "CartesianProduct"
}

// Execute implements pipeline.Processor.
func (c *CartesianProduct) Execute() error {
	left, err := c.step(func() error { return nil })
	if err != nil {
		return err
	}
	if left != nil {
		if err := c.product(left); err != nil {
			return err
		}
	}
	c.done(left)
	return nil
}

func (c *CartesianProduct) product(left *dataframe.Dataframe) error {
	ln, rn := left.RowCount(), c.right.RowCount()
	if ln == 0 || rn == 0 {
		return nil
	}
	out := c.out.Dataframe()
	for _, lc := range left.Cols() {
		col, err := column(left, lc.Tag)
		if err != nil {
			return err
		}
		out.Get(lc.Tag).Col = broadcast(col, ln).Repeat(rn)
	}
	for _, tag := range c.rightCols {
		col, err := column(c.right, tag)
		if err != nil {
			return err
		}
		out.Get(tag).Col = broadcast(col, rn).Tile(ln)
	}
	c.out.Port.WriteData()
	return nil
}
