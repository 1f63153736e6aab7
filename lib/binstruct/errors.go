// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct

import (
	"fmt"
	"reflect"
)

// InvalidTypeError is what binstruct panics with when handed a type
// that it cannot lay out; this is a programming error, not a data
// error.
type InvalidTypeError struct {
	Type reflect.Type
	Err  error
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("%v: %v", e.Type, e.Err)
}
func (e *InvalidTypeError) Unwrap() error { return e.Err }

// MethodError wraps an error returned by a type's own MarshalBinary
// or UnmarshalBinary method.
type MethodError struct {
	Type   reflect.Type
	Method string
	Err    error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("(%v).%v: %v", e.Type, e.Method, e.Err)
}
func (e *MethodError) Unwrap() error { return e.Err }
