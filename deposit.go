package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rdmotools/zenodo-go/internal/authflow"
	"github.com/rdmotools/zenodo-go/internal/deposit"
	"github.com/rdmotools/zenodo-go/internal/invenio"
	"github.com/rdmotools/zenodo-go/internal/metadata"
	"github.com/rdmotools/zenodo-go/internal/recordid"
	"github.com/rdmotools/zenodo-go/internal/render"
	"github.com/rdmotools/zenodo-go/internal/session"
)

// depositStack wires the full deposition machinery for one session: the
// repository client, the session-backed token store, the record identity
// map, the metadata builder and renderer, and the browser authorizer.
type depositStack struct {
	tokens   *session.TokenStore
	records  *recordid.Identity
	flow     *authflow.Flow
	auth     *browserAuthorizer
	workflow *deposit.Workflow
}

// newDepositStack assembles the workflow collaborators from the resolved
// environment. Requires a configured client ID and secret.
func newDepositStack(env *appEnv) (*depositStack, error) {
	p := env.cfg.Provider
	if p.ClientID == "" || p.ClientSecret == "" {
		return nil, errors.New("client_id and client_secret must be configured (see [provider] in the config file)")
	}

	httpClient := env.httpClient()
	tokens := session.NewTokenStore(env.db.Sessions(flagSession))
	records := recordid.New(env.db.Values())
	source := env.db.Projects()

	builder := metadata.NewBuilder(source, metadata.Options{
		ResourceType:      p.ResourceType,
		UploadType:        p.UploadType,
		AddProjectMembers: p.AddProjectMembers,
		Publisher:         p.Publisher,
		Language:          p.Language,
		Funding:           p.Funding,
		Rights:            p.Rights,
	})

	renderer := render.NewTextRenderer(source, p.ExportFilename, exportSuffix(p.ExportFormat))

	flow := authflow.New(p.ClientID, p.ClientSecret, p.URL, tokens, httpClient, env.logger)
	auth := newBrowserAuthorizer(flow, env.logger)
	repo := invenio.NewClient(p.URL, httpClient, env.logger)

	return &depositStack{
		tokens:   tokens,
		records:  records,
		flow:     flow,
		auth:     auth,
		workflow: deposit.New(repo, tokens, records, builder, renderer, auth, env.logger),
	}, nil
}

// exportSuffix maps the configured export format to a suffix the built-in
// text renderer can honor. Binary formats fall back to markdown.
func exportSuffix(format string) string {
	switch format {
	case "txt", "md":
		return format
	default:
		return "md"
	}
}

// authorizeAndResume completes one authorization round-trip and resumes
// the suspended run: open the browser at authURL, wait for the callback,
// exchange the code, then replay the interrupted request.
func (s *depositStack) authorizeAndResume(ctx context.Context, env *appEnv, authURL string) (deposit.Outcome, error) {
	launchBrowser(authURL, env.logger)

	if err := s.auth.Finish(ctx); err != nil {
		return deposit.Outcome{}, err
	}

	outcome, resumed := s.workflow.Resume(ctx)
	if !resumed {
		return deposit.Outcome{}, errors.New("no suspended deposition to resume")
	}

	return outcome, nil
}

// reportOutcome turns a terminal workflow outcome into CLI output or an
// error. Non-terminal states are the caller's business.
func reportOutcome(outcome deposit.Outcome) error {
	switch outcome.State {
	case deposit.StateDone:
		fmt.Printf("Deposition published: %s\n", outcome.RecordURL)

		if outcome.Ref != nil {
			fmt.Printf("Record ID: %s\n", outcome.Ref.FetchID())
		}

		return nil
	case deposit.StateFailed:
		return outcome.Err
	default:
		return fmt.Errorf("deposition stopped in unexpected state %s", outcome.State)
	}
}

func newDepositCmd() *cobra.Command {
	var snapshotRef string

	cmd := &cobra.Command{
		Use:   "deposit <project-ref>",
		Short: "Export a project's DMP to the repository and publish it",
		Long: "Creates or versions the project's repository record, uploads the " +
			"metadata and the rendered document, and publishes the result. " +
			"Opens a browser for authorization when no valid token is held.",
		Args: cobra.ExactArgs(1),
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

			outcome := stack.workflow.Start(ctx, args[0], snapshotRef)

			for outcome.State == deposit.StateAuthorizing {
				outcome, err = stack.authorizeAndResume(ctx, env, outcome.AuthorizeURL)
				if err != nil {
					return err
				}
			}

			return reportOutcome(outcome)
		},
	}

	cmd.Flags().StringVar(&snapshotRef, "snapshot", "", "snapshot reference to export (defaults to the live project)")

	return cmd
}
