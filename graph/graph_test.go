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

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_LabelSet(t *testing.T) {
	s := NewLabelSet(5, 1, 3, 1)
	assert.Equal(t, LabelSet{1, 3, 5}, s)
	assert.Equal(t, "1,3,5", s.Key())
	assert.True(t, s.HasAll(NewLabelSet(1, 5)))
	assert.True(t, s.HasAll(nil))
	assert.False(t, s.HasAll(NewLabelSet(2)))
	assert.False(t, s.HasAll(NewLabelSet(5, 6)))
	assert.False(t, LabelSet{}.HasAll(NewLabelSet(1)))
}

func Test_Edge_Other(t *testing.T) {
	e := Edge{ID: 1, Src: 10, Tgt: 20}
	assert.Equal(t, NodeID(20), e.Other(10))
	assert.Equal(t, NodeID(10), e.Other(20))
}

func Test_ValueKind_String(t *testing.T) {
	assert.Equal(t, "Double", ValueFloat64.String())
	assert.Equal(t, "Invalid", ValueKind(42).String())
}
