// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsioctl"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
	"git.lukeshu.com/btrfs-rootitem/lib/subvol"
)

type showResult struct {
	subvol.Subvolume
	// ParentSubvolID is the subvolume that Root.ParentUUID names,
	// if it still exists.
	ParentSubvolID btrfsprim.ObjID   `json:"parent_subvol_id,omitempty"`
	ReceivedBy     []btrfsprim.ObjID `json:"received_by,omitempty"`
}

func init() {
	var jsonFlag bool
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "show PATH",
			Short: "Show the root item of the subvolume containing PATH",
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

			id, err := subvol.Containing(ctx, fs)
			if err != nil {
				return err
			}
			ctx = dlog.WithField(ctx, "btrfs-rootitem.subvol", id)
			sv, err := subvol.Get(ctx, fs, id)
			if err != nil {
				return err
			}
			ret := showResult{
				Subvolume: *sv,
			}

			if sv.Root != nil {
				resolver := subvol.NewResolver(fs)
				if !sv.Root.ParentUUID.IsZero() {
					ret.ParentSubvolID, err = resolver.LookupUUID(ctx, sv.Root.ParentUUID)
					switch {
					case errors.Is(err, subvol.ErrNotFound):
						dlog.Debugf(ctx, "parent %v no longer exists", sv.Root.ParentUUID)
					case err != nil:
						return err
					}
				}
				ret.ReceivedBy, err = resolver.LookupReceivedUUID(ctx, sv.Root.UUID)
				if err != nil && !errors.Is(err, subvol.ErrNotFound) {
					return err
				}
			}

			if jsonFlag {
				return writeJSONFile(os.Stdout, ret, jsonIndented)
			}
			return writeShow(os.Stdout, ret)
		},
	}
	cmd.Command.Flags().BoolVar(&jsonFlag, "json", false, "print JSON instead of text")
	subcommands = append(subcommands, cmd)
}

func fmtUUID(uuid btrfsprim.UUID) string {
	if uuid.IsZero() {
		return "-"
	}
	return uuid.String()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05.000000000 -0700")
}

func writeShow(w io.Writer, ret showResult) (err error) {
	buffer := bufio.NewWriter(w)
	defer func() {
		if _err := buffer.Flush(); err == nil && _err != nil {
			err = _err
		}
	}()

	path := ret.Path
	if path == "" {
		path = "<unknown>"
	}
	fmt.Fprintf(buffer, "%s\n", path)
	fmt.Fprintf(buffer, "\tName:\t\t\t%s\n", ret.Name)
	if ret.Root == nil {
		fmt.Fprintf(buffer, "\tRoot item:\t\t<too short>\n")
	} else {
		fmt.Fprintf(buffer, "\tUUID:\t\t\t%s\n", fmtUUID(ret.Root.UUID))
		if ret.ParentSubvolID != 0 {
			fmt.Fprintf(buffer, "\tParent UUID:\t\t%s (ID %d)\n", fmtUUID(ret.Root.ParentUUID), uint64(ret.ParentSubvolID))
		} else {
			fmt.Fprintf(buffer, "\tParent UUID:\t\t%s\n", fmtUUID(ret.Root.ParentUUID))
		}
		fmt.Fprintf(buffer, "\tReceived UUID:\t\t%s\n", fmtUUID(ret.Root.ReceivedUUID))
		fmt.Fprintf(buffer, "\tGeneration:\t\t%d\n", uint64(ret.Root.Generation))
		fmt.Fprintf(buffer, "\tGen at creation:\t%d\n", uint64(ret.Root.OTransID))
		fmt.Fprintf(buffer, "\tFlags:\t\t\t%v\n", ret.Root.Flags)
		fmt.Fprintf(buffer, "\tCreation time:\t\t%s\n", fmtTime(ret.OTime))
		fmt.Fprintf(buffer, "\tChange time:\t\t%s\n", fmtTime(ret.CTime))
	}
	fmt.Fprintf(buffer, "\tSubvolume ID:\t\t%d\n", uint64(ret.ID))
	fmt.Fprintf(buffer, "\tParent ID:\t\t%d\n", uint64(ret.ParentID))
	if len(ret.ReceivedBy) > 0 {
		ids := make([]string, len(ret.ReceivedBy))
		for i, id := range ret.ReceivedBy {
			ids[i] = fmt.Sprint(uint64(id))
		}
		fmt.Fprintf(buffer, "\tReceived by:\t\t%s\n", strings.Join(ids, ", "))
	}
	return nil
}
