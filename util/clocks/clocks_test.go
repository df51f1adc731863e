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

package clocks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Mock(t *testing.T) {
	assert := assert.New(t)
	clock := NewMock()
	start := clock.Now()
	assert.Equal(time.Unix(0, 0), start)
	assert.Equal(start, clock.Now())
	clock.Advance(time.Minute)
	assert.Equal(time.Minute, clock.Now().Sub(start))

	clock.AutoAdvance(time.Second)
	a := clock.Now()
	b := clock.Now()
	assert.Equal(time.Second, b.Sub(a))
	clock.AutoAdvance(0)
	assert.Equal(clock.Now(), clock.Now())
}

func Test_Wall(t *testing.T) {
	before := time.Now()
	now := Wall.Now()
	assert.False(t, now.Before(before))
}
