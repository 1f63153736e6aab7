// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsitem"
)

func init() {
	var (
		outFlag   string
		indexFlag int
	)
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "pack FILE.json",
			Short: "Write a raw root item from the JSON that `unpack` prints",
			Long: "" +
				"FILE.json is the array printed by `unpack`; --index picks " +
				"one entry.  The entry's \"view\" is packed into its \"raw\" " +
				"item (or into zeros if there is no \"raw\"), leaving all " +
				"other bytes as they were.",
			Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := packFile(cmd.Context(), args[0], indexFlag)
			if err != nil {
				return err
			}
			if outFlag == "" || outFlag == "-" {
				_, err := os.Stdout.Write(raw[:])
				return err
			}
			return os.WriteFile(outFlag, raw[:], 0o644)
		},
	}
	cmd.Command.Flags().IntVar(&indexFlag, "index", 0, "pack entry number `n` (0-based) of the array")
	cmd.Command.Flags().StringVarP(&outFlag, "output", "o", "-", "write the item to `file` instead of stdout")
	if err := cmd.Command.MarkFlagFilename("output"); err != nil {
		panic(err)
	}
	subcommands = append(subcommands, cmd)
}

func packFile(ctx context.Context, filename string, index int) (*btrfsitem.RawRootItem, error) {
	entries, err := readJSONFile[[]unpackResult](ctx, filename)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("%q: index %d out of range: have %d entries", filename, index, len(entries))
	}
	in := entries[index]
	if in.View == nil {
		if in.Error != "" {
			return nil, fmt.Errorf("%q: entry %d (%q) failed to unpack: %s", filename, index, in.File, in.Error)
		}
		return nil, fmt.Errorf("%q: entry %d has no \"view\"", filename, index)
	}
	var raw btrfsitem.RawRootItem
	if in.Raw != nil {
		raw = in.Raw.Val
	} else {
		dlog.Debugf(ctx, "entry %d has no raw item, packing into zeros", index)
	}
	in.View.PackInto(&raw)
	return &raw, nil
}
