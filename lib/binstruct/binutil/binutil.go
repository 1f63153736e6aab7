// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binutil provides utilities for implementing the interfaces
// consumed by binstruct.
package binutil

import (
	"fmt"
)

// NeedNBytesError is returned when a buffer is too short to hold the
// value being decoded from it.
type NeedNBytesError struct {
	Need, Have int
}

func (e *NeedNBytesError) Error() string {
	return fmt.Sprintf("need at least %v bytes, only have %v", e.Need, e.Have)
}

func NeedNBytes(dat []byte, n int) error {
	if len(dat) < n {
		return &NeedNBytesError{Need: n, Have: len(dat)}
	}
	return nil
}
