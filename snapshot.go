package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage project snapshots",
	}

	cmd.AddCommand(newSnapshotListCmd())
	cmd.AddCommand(newSnapshotCreateCmd())

	return cmd
}

func newSnapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-ref>",
		Short: "List a project's snapshots, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			snapshots, err := env.db.Projects().ListSnapshots(ctx, args[0])
			if err != nil {
				return err
			}

			if len(snapshots) == 0 {
				fmt.Println("No snapshots.")
				return nil
			}

			for _, s := range snapshots {
				fmt.Printf("%s  %s  %s\n", s.Ref, s.Created.Format("2006-01-02 15:04"), s.Title)
			}

			return nil
		},
	}
}

func newSnapshotCreateCmd() *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "create <project-ref>",
		Short: "Create a snapshot of a project",
		Long: "Records a named snapshot of the project. When no title is given " +
			"one is generated from the project title and a running number.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			snapshot, err := env.db.Projects().CreateSnapshot(ctx, args[0], title, description)
			if err != nil {
				return err
			}

			fmt.Printf("Created snapshot %s (%s)\n", snapshot.Ref, snapshot.Title)

			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "snapshot title")
	cmd.Flags().StringVar(&description, "description", "", "snapshot description")

	return cmd
}
