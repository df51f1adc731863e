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

import "github.com/ebay/akgraph/query/dataframe"

// Buffer is the channel between one output port and one input port. It holds
// a single dataframe; the producer writes into it and the consumer reads it.
type Buffer struct {
	df *dataframe.Dataframe
	// hasData is set when the producer has written and cleared when the
	// consumer has consumed. It's the only readiness signal.
	hasData bool
	// closed is set when the producer finished: no more data will be written
	// unless the producer is reset.
	closed bool
}

// Dataframe returns the buffer's dataframe.
func (b *Buffer) Dataframe() *dataframe.Dataframe {
	return b.df
}

// HasData returns true if the producer has written data the consumer hasn't
// consumed yet.
func (b *Buffer) HasData() bool {
	return b.hasData
}

// Closed returns true if the producer has finished.
func (b *Buffer) Closed() bool {
	return b.closed
}

// OutputPort is where a processor writes its results. It owns its buffer.
type OutputPort struct {
	proc Processor
	buf  *Buffer
	peer *InputPort
}

// Processor returns the port's owner.
func (p *OutputPort) Processor() Processor {
	return p.proc
}

// Buffer returns the port's buffer.
func (p *OutputPort) Buffer() *Buffer {
	return p.buf
}

// Dataframe returns the dataframe of the port's buffer.
func (p *OutputPort) Dataframe() *dataframe.Dataframe {
	return p.buf.df
}

// Peer returns the input port this one is connected to, or nil.
func (p *OutputPort) Peer() *InputPort {
	return p.peer
}

// HasData returns true if the last write hasn't been consumed yet.
func (p *OutputPort) HasData() bool {
	return p.buf.hasData
}

// WriteData marks the buffer as holding a batch for the consumer.
func (p *OutputPort) WriteData() {
	p.buf.hasData = true
}

// ConnectTo makes the input port share this port's buffer. Any previous
// connection of either port is dropped.
func (p *OutputPort) ConnectTo(in *InputPort) {
	if p.peer != nil {
		p.peer.peer = nil
		p.peer.buf = nil
	}
	if in.peer != nil {
		in.peer.peer = nil
	}
	p.peer = in
	in.peer = p
	in.buf = p.buf
}

// InputPort is where a processor reads the results of another.
type InputPort struct {
	proc Processor
	buf  *Buffer
	peer *OutputPort
	// If false, the processor can run without data on this port.
	needsData bool
}

// Processor returns the port's owner.
func (p *InputPort) Processor() Processor {
	return p.proc
}

// Peer returns the output port this one is connected to, or nil.
func (p *InputPort) Peer() *OutputPort {
	return p.peer
}

// IsConnected returns true if the port shares a buffer with an output port.
func (p *InputPort) IsConnected() bool {
	return p.buf != nil
}

// Dataframe returns the dataframe of the shared buffer, or nil if the port
// isn't connected.
func (p *InputPort) Dataframe() *dataframe.Dataframe {
	if p.buf == nil {
		return nil
	}
	return p.buf.df
}

// HasData returns true if the producer has written a batch that hasn't been
// consumed.
func (p *InputPort) HasData() bool {
	return p.buf != nil && p.buf.hasData
}

// Closed returns true if the producer has finished. Once Closed is true and
// HasData is false, no more data will arrive.
func (p *InputPort) Closed() bool {
	return p.buf != nil && p.buf.closed
}

// Done returns true if the producer has finished and every batch it wrote
// has been consumed.
func (p *InputPort) Done() bool {
	return p.Closed() && !p.HasData()
}

// Consume frees the buffer so the producer can write the next batch.
func (p *InputPort) Consume() {
	if p.buf != nil {
		p.buf.hasData = false
	}
}

// NeedsData returns whether the processor requires data on this port to run.
func (p *InputPort) NeedsData() bool {
	return p.needsData
}

// SetNeedsData changes whether the processor requires data on this port to
// run. Processors that read their inputs in phases turn this off for the
// inputs they aren't reading yet.
func (p *InputPort) SetNeedsData(needs bool) {
	p.needsData = needs
}
