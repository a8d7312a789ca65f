// Package condition evaluates conditional descriptors: a $check path, an
// optional set of comparison operators, a $join mode, and $not.
//
// The same descriptor shape drives the $if tag, conditional attribute values
// and $filter on bindings.
package condition

import (
	"math"
	"reflect"

	"github.com/conneroisu/treebark/internal/errors"
	"github.com/conneroisu/treebark/internal/resolver"
	"github.com/conneroisu/treebark/internal/tree"
)

// Descriptor keys.
const (
	KeyCheck = "$check"
	KeyThen  = "$then"
	KeyElse  = "$else"
	KeyNot   = "$not"
	KeyJoin  = "$join"
)

// Comparison operators.
const (
	OpLess         = "$<"
	OpGreater      = "$>"
	OpLessEqual    = "$<="
	OpGreaterEqual = "$>="
	OpEqual        = "$="
	OpIn           = "$in"
)

// Operators lists the comparison operators in evaluation order.
var Operators = []string{OpLess, OpGreater, OpLessEqual, OpGreaterEqual, OpEqual, OpIn}

var reservedKeys = map[string]bool{
	KeyCheck: true, KeyThen: true, KeyElse: true, KeyNot: true, KeyJoin: true,
	OpLess: true, OpGreater: true, OpLessEqual: true, OpGreaterEqual: true, OpEqual: true, OpIn: true,
}

// IsReservedKey reports whether key belongs to the descriptor vocabulary.
func IsReservedKey(key string) bool {
	return reservedKeys[key]
}

// Join combines operator results.
type Join string

const (
	JoinAnd Join = "AND"
	JoinOr  Join = "OR"
)

// Operation is one comparison against the checked value.
type Operation struct {
	Op      string
	Operand any
}

// Descriptor is a parsed conditional.
type Descriptor struct {
	Check      string
	Then       any
	HasThen    bool
	Else       any
	HasElse    bool
	Not        bool
	Join       Join
	Operations []Operation
	// Unknown lists keys outside the descriptor vocabulary, in order.
	Unknown []string
}

// IsDescriptor reports whether v is a mapping carrying $check.
func IsDescriptor(v any) bool {
	obj, ok := tree.AsObject(v)

	return ok && obj.Has(KeyCheck)
}

// Parse builds a Descriptor from an attributes object. Structural problems
// (missing or invalid $check, malformed $not or $join) are fatal errors.
func Parse(obj *tree.Object) (*Descriptor, error) {
	raw, ok := obj.Get(KeyCheck)
	if !ok {
		return nil, errors.Fatalf(errors.ErrCodeInvalidCondition, "Conditional requires a %q attribute", KeyCheck)
	}
	check, ok := raw.(string)
	if !ok {
		return nil, errors.Fatalf(errors.ErrCodeInvalidCondition, "%q must be a string path", KeyCheck)
	}
	if err := resolver.ValidateBindingPath(KeyCheck, check); err != nil {
		return nil, err
	}

	d := &Descriptor{Check: check, Join: JoinAnd}

	for _, key := range obj.Keys() {
		val, _ := obj.Get(key)
		switch key {
		case KeyCheck:
		case KeyThen:
			d.Then, d.HasThen = val, true
		case KeyElse:
			d.Else, d.HasElse = val, true
		case KeyNot:
			b, ok := val.(bool)
			if !ok {
				return nil, errors.Fatalf(errors.ErrCodeInvalidCondition, "%q must be a boolean", KeyNot)
			}
			d.Not = b
		case KeyJoin:
			s, _ := val.(string)
			switch Join(s) {
			case JoinAnd, JoinOr:
				d.Join = Join(s)
			default:
				return nil, errors.Fatalf(errors.ErrCodeInvalidCondition, "%q must be \"AND\" or \"OR\"", KeyJoin)
			}
		case OpLess, OpGreater, OpLessEqual, OpGreaterEqual, OpEqual, OpIn:
			d.Operations = append(d.Operations, Operation{Op: key, Operand: val})
		default:
			d.Unknown = append(d.Unknown, key)
		}
	}

	return d, nil
}

// Evaluate applies the descriptor to an already resolved value. Without
// operators the result is the value's truthiness; with operators each one is
// evaluated and combined by Join. Not negates the final result.
func (d *Descriptor) Evaluate(value any) bool {
	var result bool
	if len(d.Operations) == 0 {
		result = Truthy(value)
	} else if d.Join == JoinOr {
		for _, op := range d.Operations {
			if op.Apply(value) {
				result = true
				break
			}
		}
	} else {
		result = true
		for _, op := range d.Operations {
			if !op.Apply(value) {
				result = false
				break
			}
		}
	}

	if d.Not {
		return !result
	}

	return result
}

// Branch evaluates the descriptor and returns the selected $then or $else
// value. The boolean is false when the selected branch is absent.
func (d *Descriptor) Branch(value any) (any, bool) {
	if d.Evaluate(value) {
		return d.Then, d.HasThen
	}

	return d.Else, d.HasElse
}

// Apply evaluates one operator. Operands of the wrong type make it false.
func (o Operation) Apply(value any) bool {
	switch o.Op {
	case OpLess, OpGreater, OpLessEqual, OpGreaterEqual:
		a, ok := Number(value)
		if !ok {
			return false
		}
		b, ok := Number(o.Operand)
		if !ok {
			return false
		}
		switch o.Op {
		case OpLess:
			return a < b
		case OpGreater:
			return a > b
		case OpLessEqual:
			return a <= b
		default:
			return a >= b
		}
	case OpEqual:
		return StrictEqual(value, o.Operand)
	case OpIn:
		list := resolver.Items(o.Operand)
		if list == nil {
			return false
		}
		for _, item := range list {
			if StrictEqual(value, item) {
				return true
			}
		}
	}

	return false
}

// Truthy reports whether v counts as true. The falsy set is exactly nil,
// false, 0, NaN and the empty string; empty lists and mappings are truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if n, ok := Number(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return false
		}
	}

	return true
}

// Number converts any Go numeric value to float64.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case float64:
		return t, true
	case nil, string, bool:
		return 0, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}

	return 0, false
}

// StrictEqual compares two scalars by type and value. All numeric kinds
// share one number type, so 18 equals 18.0. Lists and mappings never
// compare equal.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := Number(a); ok {
		y, ok := Number(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}

	return false
}
