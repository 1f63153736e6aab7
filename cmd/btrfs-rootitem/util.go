// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"context"
	"io"
	"os"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/datawire/dlib/dlog"
)

// ctxReader stops reading once ctx is canceled.
type ctxReader struct {
	ctx context.Context //nolint:containedctx // For detecting shutdown from methods
	*bufio.Reader
}

func (r ctxReader) ReadRune() (rune, int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, 0, err
	}
	return r.Reader.ReadRune()
}

func readJSONFile[T any](ctx context.Context, filename string) (T, error) {
	var zero T
	fh, err := os.Open(filename)
	if err != nil {
		return zero, err
	}
	defer func() {
		_ = fh.Close()
	}()
	dlog.Debugf(ctx, "reading %q...", filename)
	var ret T
	if err := lowmemjson.NewDecoder(ctxReader{ctx: ctx, Reader: bufio.NewReader(fh)}).DecodeThenEOF(&ret); err != nil {
		return zero, err
	}
	return ret, nil
}

func writeJSONFile(w io.Writer, obj any, cfg lowmemjson.ReEncoderConfig) (err error) {
	buffer := bufio.NewWriter(w)
	defer func() {
		if _err := buffer.Flush(); err == nil && _err != nil {
			err = _err
		}
	}()
	return lowmemjson.NewEncoder(lowmemjson.NewReEncoder(buffer, cfg)).Encode(obj)
}

var jsonIndented = lowmemjson.ReEncoderConfig{
	Indent:                "\t",
	ForceTrailingNewlines: true,
}
