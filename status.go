package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rdmotools/zenodo-go/internal/deposit"
	"github.com/rdmotools/zenodo-go/internal/recordid"
	"github.com/rdmotools/zenodo-go/internal/session"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [project-ref]",
		Short: "Show session and deposition state",
		Long: "Shows whether a token is held, whether a deposition is suspended " +
			"waiting for authorization, and — given a project reference — the " +
			"repository record linked to that project.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			tokens := session.NewTokenStore(env.db.Sessions(flagSession))

			tok, err := tokens.Token()
			if err != nil {
				return err
			}

			if tok != nil {
				fmt.Println("Logged in: yes")
			} else {
				fmt.Println("Logged in: no")
			}

			pending, err := tokens.HasPending()
			if err != nil {
				return err
			}

			if pending {
				projectRef, snapshotRef, err := tokens.Run()
				if err != nil {
					return err
				}

				fmt.Printf("Suspended deposition: project %s", projectRef)

				if snapshotRef != "" {
					fmt.Printf(", snapshot %s", snapshotRef)
				}

				raw, err := tokens.Progress()
				if err != nil {
					return err
				}

				if state, recordID, ok := deposit.DescribeProgress(raw); ok {
					fmt.Printf(" (state %s", state)

					if recordID != "" {
						fmt.Printf(", record %s", recordID)
					}

					fmt.Print(")")
				}

				fmt.Println()
				fmt.Println("Run `zenodo-go login` to resume it.")
			} else {
				fmt.Println("Suspended deposition: none")
			}

			if len(args) == 1 {
				records := recordid.New(env.db.Values())

				ref, err := records.Lookup(args[0])
				if err != nil {
					return err
				}

				if ref == nil {
					fmt.Printf("Project %s: no repository record linked\n", args[0])
				} else {
					fmt.Printf("Project %s: record %s\n", args[0], ref.FetchID())
				}
			}

			return nil
		},
	}
}
