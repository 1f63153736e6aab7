// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsitem"
)

func init() {
	subcommands = append(subcommands, subcommand{
		Command: cobra.Command{
			Use:   "spew FILE",
			Short: "Spew the fully decoded root item in FILE",
			Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dat, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			raw, err := btrfsitem.ReadRawRootItem(dat)
			if err != nil {
				return err
			}
			var root btrfsitem.Root
			if _, err := binstruct.Unmarshal(raw[:], &root); err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}

			spew := spew.NewDefaultConfig()
			spew.DisablePointerAddresses = true
			spew.Dump(root)
			return nil
		},
	})
}
