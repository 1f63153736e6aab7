// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsioctl"
	"git.lukeshu.com/btrfs-rootitem/lib/subvol"
)

func init() {
	var jsonFlag bool
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "list MOUNTPOINT",
			Short: "List the subvolumes of a mounted filesystem",
			Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			maybeSetErr := func(_err error) {
				if _err != nil && err == nil {
					err = _err
				}
			}

			fs, err := btrfsioctl.Open(args[0])
			if err != nil {
				return err
			}
			defer func() {
				maybeSetErr(fs.Close())
			}()

			ctx = dlog.WithField(ctx, "btrfs-rootitem.mountpoint", fs.Name())
			subvols, err := subvol.List(ctx, fs)
			if err != nil {
				return err
			}
			dlog.Infof(ctx, "found %d subvolumes", len(subvols))

			if jsonFlag {
				return writeJSONFile(os.Stdout, subvols, jsonIndented)
			}
			return writeSubvolTable(os.Stdout, subvols)
		},
	}
	cmd.Command.Flags().BoolVar(&jsonFlag, "json", false, "print JSON instead of a table")
	subcommands = append(subcommands, cmd)
}

func writeSubvolTable(w io.Writer, subvols []subvol.Subvolume) (err error) {
	buffer := bufio.NewWriter(w)
	defer func() {
		if _err := buffer.Flush(); err == nil && _err != nil {
			err = _err
		}
	}()
	for _, sv := range subvols {
		var (
			gen   uint64
			flags string
			uuid  = "-"
			puuid = "-"
		)
		if sv.Root != nil {
			gen = uint64(sv.Root.Generation)
			flags = sv.Root.Flags.String()
			if !sv.Root.UUID.IsZero() {
				uuid = sv.Root.UUID.String()
			}
			if !sv.Root.ParentUUID.IsZero() {
				puuid = sv.Root.ParentUUID.String()
			}
		} else {
			flags = "-"
		}
		path := sv.Path
		if path == "" {
			path = "<unknown>"
		}
		if _, err := fmt.Fprintf(buffer, "ID %d gen %d top level %d flags %s parent_uuid %s uuid %s path %s\n",
			uint64(sv.ID), gen, uint64(sv.ParentID), flags, puuid, uuid, path); err != nil {
			return err
		}
	}
	return nil
}
