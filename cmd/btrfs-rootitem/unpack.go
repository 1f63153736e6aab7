// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-rootitem/lib/jsonutil"
	"git.lukeshu.com/btrfs-rootitem/lib/textui"
)

// unpackResult is one element of the array that `unpack` prints and
// that `pack` reads.
type unpackResult struct {
	File  string                                 `json:"file,omitempty"`
	View  *btrfsitem.RootItemView                `json:"view,omitempty"`
	Raw   *jsonutil.Binary[btrfsitem.RawRootItem] `json:"raw,omitempty"`
	Error string                                 `json:"error,omitempty"`
}

func init() {
	var rawFlag bool
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "unpack FILE...",
			Short: "Unpack raw root items and print them as JSON",
			Long: "" +
				"Each FILE holds a ROOT_ITEM exactly as the kernel stores it " +
				"(at least 439 bytes; trailing bytes are ignored).  The files " +
				"are unpacked in parallel and printed in argument order.",
			Args: cliutil.WrapPositionalArgs(cobra.MinimumNArgs(1)),
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := unpackFiles(cmd.Context(), args, rawFlag)
			if results == nil {
				return err
			}
			if _err := writeJSONFile(os.Stdout, results, jsonIndented); _err != nil {
				return _err
			}
			return err
		},
	}
	cmd.Command.Flags().BoolVar(&rawFlag, "raw", false, "also include the raw item as a hex string")
	subcommands = append(subcommands, cmd)
}

// unpackFiles unpacks each of filenames in parallel.  The results
// are in the same order as filenames; a file that fails has its Error
// set, and the returned error is a derror.MultiError of all failures.
func unpackFiles(ctx context.Context, filenames []string, withRaw bool) ([]unpackResult, error) {
	results := make([]unpackResult, len(filenames))
	errs := make([]error, len(filenames))
	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	for i, filename := range filenames {
		i, filename := i, filename
		grp.Go(fmt.Sprintf("unpack-%d", i), func(ctx context.Context) error {
			ctx = dlog.WithField(ctx, "btrfs-rootitem.file", filename)
			results[i].File = filename
			view, raw, err := unpackFile(ctx, filename)
			if err != nil {
				// A returned error would cancel the other files.
				dlog.Errorf(ctx, "%v", err)
				errs[i] = fmt.Errorf("%q: %w", filename, err)
				results[i].Error = err.Error()
				return nil
			}
			results[i].View = view
			if withRaw {
				results[i].Raw = &jsonutil.Binary[btrfsitem.RawRootItem]{Val: *raw}
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var merr derror.MultiError
	for _, err := range errs {
		if err != nil {
			merr = append(merr, err)
		}
	}
	dlog.Infof(ctx, "unpacked %v files", textui.Portion[int]{N: len(filenames) - len(merr), D: len(filenames)})
	if len(merr) > 0 {
		return results, merr
	}
	return results, nil
}

func unpackFile(ctx context.Context, filename string) (_ *btrfsitem.RootItemView, _ *btrfsitem.RawRootItem, err error) {
	defer func() {
		if _err := derror.PanicToError(recover()); _err != nil {
			err = _err
		}
	}()
	dat, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, err
	}
	raw, err := btrfsitem.ReadRawRootItem(dat)
	if err != nil {
		return nil, nil, err
	}
	if extra := len(dat) - btrfsitem.RootItemSize; extra > 0 {
		dlog.Debugf(ctx, "ignoring %v trailing bytes", textui.Humanized(extra))
	}
	var view btrfsitem.RootItemView
	btrfsitem.UnpackRootItem(&view, raw)
	dlog.Tracef(ctx, "uuid=%v generation=%v", view.UUID, view.Generation)
	return &view, raw, nil
}
