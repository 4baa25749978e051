package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patchtrack/patchtrack/internal/hook"
)

var postReceiveCmd = &cobra.Command{
	Use:   "post-receive",
	Short: "Process git post-receive ref updates from stdin",
	Long: `Reads "oldrev newrev refname" triples from stdin (the git
post-receive protocol) and updates the state of every tracked patch whose
commit landed on a configured ref. Install it as hooks/post-receive:

    #!/bin/sh
    exec pthook post-receive
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		proc := &hook.Processor{
			Git:       hook.GitCLI{Dir: cfg.Hook.GitDir},
			Patches:   apiClient(),
			RefStates: cfg.Hook.RefStates,
			Log:       log,
		}

		err := proc.Run(ctx, cmd.InOrStdin())
		if errors.Is(err, context.Canceled) {
			// interrupted between commits; already-applied updates stand
			log.Warnw("post-receive interrupted")
			return nil
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(postReceiveCmd)
}
