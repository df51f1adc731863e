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

// Package clocks provides a mockable way to measure time.
package clocks

import (
	"sync"
	"time"
)

// Time is a convenient alias for time.Time.
type Time = time.Time

// A Source tells the passage of time. This package provides two sources: Wall
// and Mock.
type Source interface {
	// Now returns the current time.
	Now() Time
}

// Wall is a Source that uses the system's real clock.
var Wall Source = wallClock{}

type wallClock struct{}

func (wallClock) Now() Time {
	return time.Now()
}

// Mock is a Source that does not advance on its own. It can be used to control
// a clock for unit tests. A Mock may be advanced from another goroutine while
// it's in use.
type Mock struct {
	lock sync.Mutex
	now  Time
	// If not zero, each call to Now advances the clock by this much after
	// reading it.
	step time.Duration
}

// Ensures that Mock implements Source.
var _ Source = NewMock()

// NewMock returns a new mock clock that is initialized to the Unix epoch.
// Note that this is not the zero value for time.Time.
func NewMock() *Mock {
	return &Mock{now: time.Unix(0, 0)}
}

// Now implements Source.Now.
func (c *Mock) Now() Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Advance moves the clock forward by the given amount.
func (c *Mock) Advance(amount time.Duration) {
	c.lock.Lock()
	c.now = c.now.Add(amount)
	c.lock.Unlock()
}

// AutoAdvance makes every subsequent call to Now move the clock forward by
// step. A step of 0 turns this off.
func (c *Mock) AutoAdvance(step time.Duration) {
	c.lock.Lock()
	c.step = step
	c.lock.Unlock()
}
