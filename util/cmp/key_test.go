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

package cmp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type labelKey []string

func (k labelKey) Key(b *strings.Builder) {
	b.WriteString("labels:")
	b.WriteString(strings.Join(k, ","))
}

func Test_GetKey(t *testing.T) {
	assert.Equal(t, "labels:A,B", GetKey(labelKey{"A", "B"}))
	assert.Equal(t, "labels:", GetKey(labelKey{}))
}

func Test_MinMax(t *testing.T) {
	assert.Equal(t, 5, MaxInt(5, -3))
	assert.Equal(t, 5, MaxInt(-3, 5))
	assert.Equal(t, -3, MinInt(5, -3))
	assert.Equal(t, -3, MinInt(-3, 5))
}
