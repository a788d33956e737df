package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rdmotools/zenodo-go/internal/deposit"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize with the repository",
		Long: "Runs the OAuth2 authorization flow in a browser and stores the " +
			"access token. If a deposition was suspended waiting for " +
			"authorization, it is resumed afterwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			stack, err := newDepositStack(env)
			if err != nil {
				return err
			}
			defer stack.auth.Close()

			authURL, err := stack.auth.Begin(ctx)
			if err != nil {
				return err
			}

			launchBrowser(authURL, env.logger)

			if err := stack.auth.Finish(ctx); err != nil {
				return err
			}

			fmt.Println("Logged in.")

			// A deposition interrupted by an expired token left a pending
			// request behind. Pick it up now that we have a token again.
			outcome, resumed := stack.workflow.Resume(ctx)
			if !resumed {
				return nil
			}

			fmt.Println("Resuming suspended deposition.")

			for outcome.State == deposit.StateAuthorizing {
				outcome, err = stack.authorizeAndResume(ctx, env, outcome.AuthorizeURL)
				if err != nil {
					return err
				}
			}

			return reportOutcome(outcome)
		},
	}
}
