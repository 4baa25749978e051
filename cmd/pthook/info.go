package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	infoHash string
	infoMbox bool
)

var infoCmd = &cobra.Command{
	Use:   "info [id]",
	Short: "Show a patch, addressed by id or by hash",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 0) == (infoHash == "") {
			return errors.New("give exactly one of an id argument or --hash")
		}

		c := apiClient()
		ctx := cmd.Context()

		var id int64
		if infoHash != "" {
			p, err := c.PatchByHash(ctx, infoHash)
			if err != nil {
				return err
			}
			id = p.ID
		} else {
			var err error
			if id, err = strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("invalid patch id %q", args[0])
			}
		}

		if infoMbox {
			mbox, err := c.Mbox(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), mbox)
			return nil
		}

		p, err := c.Patch(ctx, id)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	infoCmd.Flags().StringVarP(&infoHash, "hash", "H", "", "patch hash")
	infoCmd.Flags().BoolVar(&infoMbox, "mbox", false, "print the patch as an mbox message")
	rootCmd.AddCommand(infoCmd)
}
