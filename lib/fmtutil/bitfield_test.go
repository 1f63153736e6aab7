// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package fmtutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.lukeshu.com/btrfs-rootitem/lib/fmtutil"
)

func TestBitfieldString(t *testing.T) {
	t.Parallel()
	names := []string{"A", "B", "", "D"}
	testcases := map[string]struct {
		In  uint64
		Out string
	}{
		"zero":    {In: 0, Out: "0x0(none)"},
		"one":     {In: 1, Out: "0x1(A)"},
		"several": {In: 0b1011, Out: "0xb(A|B|D)"},
		"unnamed": {In: 0b0100, Out: "0x4((1<<2))"},
		"high":    {In: 1 << 63, Out: "0x8000000000000000((1<<63))"},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.Out, fmtutil.BitfieldString(tc.In, names))
		})
	}
}
