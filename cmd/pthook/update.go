package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patchtrack/patchtrack/client"
)

var (
	updateState     string
	updateHash      string
	updateID        int64
	updateCommitRef string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a patch's state, addressed by id or by hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		if updateState == "" {
			return errors.New("a target state is required (-s)")
		}
		if (updateID == 0) == (updateHash == "") {
			return errors.New("give exactly one of --id or --hash")
		}

		c := apiClient()
		ctx := cmd.Context()

		id := updateID
		if updateHash != "" {
			p, err := c.PatchByHash(ctx, updateHash)
			if err != nil {
				return fmt.Errorf("looking up patch by hash: %w", err)
			}
			id = p.ID
		}

		update := client.PatchUpdate{StateName: &updateState}
		if updateCommitRef != "" {
			update.CommitRef = &updateCommitRef
		}

		p, err := c.UpdatePatch(ctx, id, update)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "patch #%d updated to state %s\n", p.ID, updateState)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVarP(&updateState, "state", "s", "", "target state name")
	updateCmd.Flags().StringVarP(&updateHash, "hash", "H", "", "patch hash")
	updateCmd.Flags().Int64VarP(&updateID, "id", "i", 0, "patch id")
	updateCmd.Flags().StringVarP(&updateCommitRef, "commit-ref", "c", "",
		"commit to record on the patch")
	rootCmd.AddCommand(updateCmd)
}
