// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package fmtutil

import (
	"fmt"
	"strings"
)

// BitfieldString renders a bitfield as "0x3(A|B)", or "0x0(none)".
// Bits without an entry in bitnames render as "(1<<N)".
func BitfieldString[T ~uint8 | ~uint16 | ~uint32 | ~uint64](bitfield T, bitnames []string) string {
	var out strings.Builder
	fmt.Fprintf(&out, "0x%x(", uint64(bitfield))
	if bitfield == 0 {
		out.WriteString("none")
	}
	sep := ""
	for i := 0; bitfield>>i != 0; i++ {
		if bitfield&(1<<i) == 0 {
			continue
		}
		out.WriteString(sep)
		sep = "|"
		if i < len(bitnames) && bitnames[i] != "" {
			out.WriteString(bitnames[i])
		} else {
			fmt.Fprintf(&out, "(1<<%d)", i)
		}
	}
	out.WriteByte(')')
	return out.String()
}
