package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rdmotools/zenodo-go/internal/session"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			tokens := session.NewTokenStore(env.db.Sessions(flagSession))

			if err := tokens.ClearToken(); err != nil {
				return err
			}

			// Any request left waiting for authorization is moot now.
			if _, err := tokens.TakePending(); err != nil {
				return err
			}

			if err := tokens.ClearRun(); err != nil {
				return err
			}

			fmt.Println("Logged out.")

			return nil
		},
	}
}
