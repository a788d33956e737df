package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rdmotools/zenodo-go/internal/metadata"
)

// newProjectCmd manages the local project registry the exporter reads
// from. Hosts embedding the packages bring their own project source; the
// CLI keeps its own in the local database.
func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage local projects",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectSetCmd())
	cmd.AddCommand(newProjectAddMemberCmd())

	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "create <project-ref>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			if title == "" {
				return fmt.Errorf("--title is required")
			}

			if err := env.db.Projects().CreateProject(ctx, args[0], title, description); err != nil {
				return err
			}

			fmt.Printf("Created project %s\n", args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&description, "description", "", "project description")

	return cmd
}

func newProjectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-ref>",
		Short: "Show a project's title, members and keywords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			projects := env.db.Projects()

			project, err := projects.Project(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Title: %s\n", project.Title)

			if project.Description != "" {
				fmt.Printf("Description: %s\n", project.Description)
			}

			members, err := projects.Members(ctx, args[0])
			if err != nil {
				return err
			}

			for _, m := range members {
				line := fmt.Sprintf("Member: %s %s", m.GivenName, m.FamilyName)
				if m.ORCID != "" {
					line += " (" + m.ORCID + ")"
				}

				fmt.Println(line)
			}

			keywords, err := projects.Texts(ctx, args[0], metadata.AttrKeywords)
			if err != nil {
				return err
			}

			if len(keywords) > 0 {
				fmt.Printf("Keywords: %s\n", strings.Join(keywords, ", "))
			}

			return nil
		},
	}
}

func newProjectSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <project-ref> <attribute> <text>",
		Short: "Set a project attribute value",
		Long: "Sets the value stored for an attribute path, e.g. " +
			metadata.AttrDatasetTitle + ". The exporter reads these when " +
			"building the record metadata.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.db.Values().Set(args[0], args[1], args[2]); err != nil {
				return err
			}

			fmt.Printf("Set %s\n", args[1])

			return nil
		},
	}
}

func newProjectAddMemberCmd() *cobra.Command {
	var givenName, familyName, orcid string

	cmd := &cobra.Command{
		Use:   "add-member <project-ref>",
		Short: "Add a member to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			if familyName == "" {
				return fmt.Errorf("--family-name is required")
			}

			member := metadata.Member{
				GivenName:  givenName,
				FamilyName: familyName,
				ORCID:      orcid,
			}

			if err := env.db.Projects().AddMember(ctx, args[0], member); err != nil {
				return err
			}

			fmt.Printf("Added %s %s\n", givenName, familyName)

			return nil
		},
	}

	cmd.Flags().StringVar(&givenName, "given-name", "", "member given name")
	cmd.Flags().StringVar(&familyName, "family-name", "", "member family name")
	cmd.Flags().StringVar(&orcid, "orcid", "", "member ORCID identifier")

	return cmd
}
