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

import "fmt"

// Error is returned when a pipeline can't be built or run: an illegal
// interface connection, a missing column, or misuse of the builder.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return e.Msg
}

// Errorf returns an *Error with a formatted message.
func Errorf(format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// FatalError is returned when pipeline generation reaches an operator it
// doesn't implement or finds an invariant violated. It indicates a bug rather
// than a problem with the query.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return "internal pipeline error: " + e.Msg
}

// Fatalf returns a *FatalError with a formatted message.
func Fatalf(format string, args ...interface{}) error {
	return &FatalError{Msg: fmt.Sprintf(format, args...)}
}
