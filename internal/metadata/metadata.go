// Package metadata builds the InvenioRDM metadata document for a
// project's deposition. Mapping questionnaire answers and host settings
// into the repository schema is a pure data transformation; the workflow
// treats the result as an opaque JSON document.
// See https://inveniordm.docs.cern.ch/reference/metadata/ for the schema.
package metadata

import (
	"context"
	"fmt"
	"time"
)

// Well-known project attributes consumed when building metadata.
const (
	AttrDatasetTitle  = "project/dataset/title"
	AttrDatasetID     = "project/dataset/id"
	AttrKeywords      = "project/research_question/keywords"
	AttrLicenseOption = "project/dataset/sharing/conditions"
)

// Default subjects attached to every deposition.
var defaultSubjects = []string{"Data Management Plan", "DMP"}

// Project is the host project information the builder needs.
type Project struct {
	Ref         string
	Title       string
	Description string
}

// Snapshot is one frozen state of a project.
type Snapshot struct {
	Ref         string
	Title       string
	Description string
	Created     time.Time
}

// Member is a project member exported as a creator.
type Member struct {
	GivenName  string
	FamilyName string
	ORCID      string
}

// Source provides project answers and membership from the host.
type Source interface {
	Project(ctx context.Context, projectRef string) (Project, error)
	Snapshot(ctx context.Context, projectRef, snapshotRef string) (Snapshot, error)
	Texts(ctx context.Context, projectRef, attribute string) ([]string, error)
	Members(ctx context.Context, projectRef string) ([]Member, error)
}

// Options are the pass-through provider settings that shape the document.
type Options struct {
	ResourceType      string            // e.g. "publication-datamanagementplan"
	UploadType        string            // e.g. "dataset"
	AddProjectMembers bool              // export members as creators
	Publisher         string
	Language          string            // vocabulary id, e.g. "eng"
	Funding           string
	Rights            map[string]string // license option path -> rights id
}

// Builder produces the `{"metadata": ...}` document for one deposition.
type Builder struct {
	source  Source
	opts    Options
	nowFunc func() time.Time // injectable for deterministic tests
}

// NewBuilder creates a Builder over the given host source.
func NewBuilder(source Source, opts Options) *Builder {
	return &Builder{source: source, opts: opts, nowFunc: time.Now}
}

// Build assembles the metadata document for the project and snapshot.
// Empty fields are omitted rather than sent as empty values.
func (b *Builder) Build(ctx context.Context, projectRef, snapshotRef string) (map[string]any, error) {
	project, err := b.source.Project(ctx, projectRef)
	if err != nil {
		return nil, fmt.Errorf("metadata: loading project %s: %w", projectRef, err)
	}

	var snapshot *Snapshot
	if snapshotRef != "" {
		snap, err := b.source.Snapshot(ctx, projectRef, snapshotRef)
		if err != nil {
			return nil, fmt.Errorf("metadata: loading snapshot %s: %w", snapshotRef, err)
		}

		snapshot = &snap
	}

	doc := map[string]any{
		"title":            b.title(ctx, project, snapshot),
		"description":      b.description(project, snapshot),
		"resource_type":    map[string]string{"id": b.resourceType()},
		"publication_date": b.nowFunc().Format("2006-01-02"),
		"subjects":         b.subjects(ctx, project),
	}

	if b.opts.AddProjectMembers {
		creators, err := b.creators(ctx, project)
		if err != nil {
			return nil, err
		}

		if len(creators) > 0 {
			doc["creators"] = creators
		}
	}

	if rights := b.rights(ctx, project); len(rights) > 0 {
		doc["rights"] = rights
	}

	if b.opts.Language != "" {
		doc["languages"] = []map[string]string{{"id": b.opts.Language}}
	}

	if b.opts.Publisher != "" {
		doc["publisher"] = b.opts.Publisher
	}

	if b.opts.Funding != "" {
		doc["funding"] = b.opts.Funding
	}

	if b.opts.UploadType != "" {
		doc["upload_type"] = b.opts.UploadType
	}

	return map[string]any{"metadata": doc}, nil
}

func (b *Builder) resourceType() string {
	if b.opts.ResourceType != "" {
		return b.opts.ResourceType
	}

	return "publication-datamanagementplan"
}

// title prefers "project - Snapshot: name", then the dataset title or id
// answers, then the bare project title.
func (b *Builder) title(ctx context.Context, project Project, snapshot *Snapshot) string {
	if snapshot != nil {
		return fmt.Sprintf("%s - Snapshot: %s", project.Title, snapshot.Title)
	}

	for _, attr := range []string{AttrDatasetTitle, AttrDatasetID} {
		if texts, err := b.source.Texts(ctx, project.Ref, attr); err == nil && len(texts) > 0 && texts[0] != "" {
			return texts[0]
		}
	}

	return project.Title
}

func (b *Builder) description(project Project, snapshot *Snapshot) string {
	desc := fmt.Sprintf("Data Management Plan for project %s.", project.Title)
	if snapshot != nil && snapshot.Description != "" {
		desc += " " + snapshot.Description
	}

	return desc
}

func (b *Builder) subjects(ctx context.Context, project Project) []map[string]string {
	subjects := make([]map[string]string, 0, len(defaultSubjects))
	for _, s := range defaultSubjects {
		subjects = append(subjects, map[string]string{"subject": s})
	}

	keywords, err := b.source.Texts(ctx, project.Ref, AttrKeywords)
	if err != nil {
		return subjects
	}

	for _, kw := range keywords {
		if kw != "" {
			subjects = append(subjects, map[string]string{"subject": kw})
		}
	}

	return subjects
}

func (b *Builder) creators(ctx context.Context, project Project) ([]map[string]any, error) {
	members, err := b.source.Members(ctx, project.Ref)
	if err != nil {
		return nil, fmt.Errorf("metadata: loading members of project %s: %w", project.Ref, err)
	}

	creators := make([]map[string]any, 0, len(members))

	for _, m := range members {
		person := map[string]any{
			"given_name":  m.GivenName,
			"family_name": m.FamilyName,
			"type":        "personal",
		}

		if m.ORCID != "" {
			person["identifiers"] = []map[string]string{
				{"scheme": "orcid", "identifier": m.ORCID},
			}
		}

		creators = append(creators, map[string]any{"person_or_org": person})
	}

	return creators, nil
}

// rights maps the project's selected license option through the
// configured vocabulary. Unknown options are skipped rather than sent as
// invalid ids.
func (b *Builder) rights(ctx context.Context, project Project) []map[string]string {
	options, err := b.source.Texts(ctx, project.Ref, AttrLicenseOption)
	if err != nil {
		return nil
	}

	for _, opt := range options {
		if id, ok := b.opts.Rights[opt]; ok && id != "" {
			return []map[string]string{{"id": id}}
		}
	}

	return nil
}
