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

package exprprog

import "fmt"

// Op is the operator of an Instruction.
type Op uint8

// Operators. The binary operators read LHS and RHS; the unary operators only
// read LHS.
const (
	OpInvalid Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAnd
	OpOr
	OpNot
	OpIsNull
	OpIsNotNull
	OpNeg
	OpAbs
	OpToUpper
	OpToLower
	// OpToInt converts an ID column into an integer column.
	OpToInt
	// OpLookup maps each uint64 value of LHS through the instruction's Table.
	// Values missing from the table produce null.
	OpLookup
	// OpCopy sets the result to LHS. It binds a constant or an existing
	// column to a new tag.
	OpCopy
	numOps
)

var opNames = [...]string{
	OpInvalid:      "INVALID",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpMod:          "MOD",
	OpEqual:        "EQUAL",
	OpNotEqual:     "NOT_EQUAL",
	OpLess:         "LESS",
	OpLessEqual:    "LESS_EQUAL",
	OpGreater:      "GREATER",
	OpGreaterEqual: "GREATER_EQUAL",
	OpAnd:          "AND",
	OpOr:           "OR",
	OpNot:          "NOT",
	OpIsNull:       "IS_NULL",
	OpIsNotNull:    "IS_NOT_NULL",
	OpNeg:          "NEG",
	OpAbs:          "ABS",
	OpToUpper:      "TO_UPPER",
	OpToLower:      "TO_LOWER",
	OpToInt:        "TO_INT",
	OpLookup:       "LOOKUP",
	OpCopy:         "COPY",
}

func (op Op) String() string {
	if op < numOps {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// IsArithmetic returns true for ADD, SUB, MUL, DIV, and MOD.
func (op Op) IsArithmetic() bool {
	return op >= OpAdd && op <= OpMod
}

// IsComparison returns true for the six comparison operators.
func (op Op) IsComparison() bool {
	return op >= OpEqual && op <= OpGreaterEqual
}

// IsUnary returns true for the operators that take a single operand.
func (op Op) IsUnary() bool {
	return op >= OpNot && op < numOps
}
