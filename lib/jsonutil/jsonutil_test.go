// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package jsonutil_test

import (
	"bytes"
	"strings"
	"testing"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/btrfs-rootitem/lib/jsonutil"
)

func TestEncodeHexString(t *testing.T) {
	t.Parallel()
	var out strings.Builder
	require.NoError(t, jsonutil.EncodeHexString(&out, []byte{0x00, 0xab, 0x7f}))
	assert.Equal(t, `"00ab7f"`, out.String())
}

func TestDecodeHexString(t *testing.T) {
	t.Parallel()
	testcases := map[string]struct {
		In     string
		Out    []byte
		ErrStr string
	}{
		"basic":  {In: `"00AB7f"`, Out: []byte{0x00, 0xab, 0x7f}},
		"empty":  {In: `""`, Out: nil},
		"odd":    {In: `"abc"`, ErrStr: "unexpected EOF"},
		"bad":    {In: `"zz"`, ErrStr: `invalid hex digit: 'z'`},
		"number": {In: `12`, ErrStr: "string"},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			err := jsonutil.DecodeHexString(strings.NewReader(tc.In), &out)
			if tc.ErrStr != "" {
				assert.ErrorContains(t, err, tc.ErrStr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.Out, out.Bytes())
		})
	}
}

func TestBinary(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	in := jsonutil.Binary[[4]byte]{Val: [4]byte{1, 2, 3, 0xff}}
	require.NoError(t, lowmemjson.NewEncoder(&out).Encode(in))
	assert.Equal(t, `"010203ff"`, strings.TrimSpace(out.String()))

	var back jsonutil.Binary[[4]byte]
	require.NoError(t, lowmemjson.NewDecoder(strings.NewReader(out.String())).DecodeThenEOF(&back))
	assert.Equal(t, in, back)

	var short jsonutil.Binary[[4]byte]
	assert.Error(t, lowmemjson.NewDecoder(strings.NewReader(`"0102"`)).DecodeThenEOF(&short))

	var long jsonutil.Binary[[2]byte]
	assert.ErrorContains(t, lowmemjson.NewDecoder(strings.NewReader(`"010203"`)).DecodeThenEOF(&long), "1 bytes of garbage")
}
