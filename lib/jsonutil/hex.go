// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package jsonutil provides utilities for implementing the interfaces
// consumed by the "git.lukeshu.com/go/lowmemjson" package.
package jsonutil

import (
	"encoding/hex"
	"fmt"
	"io"

	"git.lukeshu.com/go/lowmemjson"
)

type InvalidHexDigitError rune

func (e InvalidHexDigitError) Error() string {
	return fmt.Sprintf("jsonutil: invalid hex digit: %q", rune(e))
}

// EncodeHexString writes str to w as a JSON string of lower-case hex
// digits.
func EncodeHexString[T ~[]byte | ~string](w io.Writer, str T) error {
	buf := make([]byte, hex.EncodedLen(len(str))+2)
	buf[0] = '"'
	hex.Encode(buf[1:len(buf)-1], []byte(str))
	buf[len(buf)-1] = '"'
	_, err := w.Write(buf)
	return err
}

// DecodeHexString reads a JSON string of hex digits (of either case)
// from r, and writes the bytes that they encode to dst.
func DecodeHexString(r io.RuneScanner, dst io.ByteWriter) error {
	var str string
	if err := lowmemjson.NewDecoder(r).Decode(&str); err != nil {
		return err
	}
	var hi byte
	for i, c := range str {
		v, ok := hexDigit(c)
		if !ok {
			return InvalidHexDigitError(c)
		}
		if i%2 == 0 {
			hi = v
			continue
		}
		if err := dst.WriteByte(hi<<4 | v); err != nil {
			return err
		}
	}
	if len(str)%2 != 0 {
		return fmt.Errorf("jsonutil: odd number of hex digits: %w", io.ErrUnexpectedEOF)
	}
	return nil
}

//nolint:gomnd // Hex conversion.
func hexDigit(c rune) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return byte(c - '0'), true
	case 'a' <= c && c <= 'f':
		return byte(c-'a') + 10, true
	case 'A' <= c && c <= 'F':
		return byte(c-'A') + 10, true
	default:
		return 0, false
	}
}
