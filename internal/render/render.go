// Package render produces the attachment document that is uploaded with a
// deposition. The workflow only sees an opaque byte blob plus filename;
// hosts with a full document pipeline plug in their own Renderer.
package render

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/rdmotools/zenodo-go/internal/metadata"
)

// Attachment is a rendered document ready for upload.
type Attachment struct {
	Filename string
	Content  []byte
}

// Renderer generates the attachment for one project/snapshot pair.
type Renderer interface {
	Render(ctx context.Context, projectRef, snapshotRef string) (Attachment, error)
}

// Filename builds the upload file key from a base name and format suffix,
// NFC-normalized so the key registered with the repository matches the
// key later used to address content and commit URLs byte-for-byte.
func Filename(base, format string) string {
	if base == "" {
		base = "rdmo_dmp"
	}

	return norm.NFC.String(base + "." + strings.TrimPrefix(format, "."))
}

// TextRenderer renders a plain-text DMP document from project answers.
// It stands in for hosts without a PDF/DOCX rendering pipeline.
type TextRenderer struct {
	source   metadata.Source
	basename string
	format   string
}

// NewTextRenderer creates a TextRenderer. format is the file suffix, e.g.
// "txt" or "md".
func NewTextRenderer(source metadata.Source, basename, format string) *TextRenderer {
	return &TextRenderer{source: source, basename: basename, format: format}
}

func (r *TextRenderer) Render(ctx context.Context, projectRef, snapshotRef string) (Attachment, error) {
	project, err := r.source.Project(ctx, projectRef)
	if err != nil {
		return Attachment{}, fmt.Errorf("render: loading project %s: %w", projectRef, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Data Management Plan: %s\n\n", project.Title)

	if snapshotRef != "" {
		snapshot, err := r.source.Snapshot(ctx, projectRef, snapshotRef)
		if err != nil {
			return Attachment{}, fmt.Errorf("render: loading snapshot %s: %w", snapshotRef, err)
		}

		fmt.Fprintf(&b, "Snapshot: %s (%s)\n\n", snapshot.Title, snapshot.Created.Format("2006-01-02"))
	}

	if project.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", project.Description)
	}

	keywords, err := r.source.Texts(ctx, projectRef, metadata.AttrKeywords)
	if err == nil && len(keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(keywords, ", "))
	}

	return Attachment{
		Filename: Filename(r.basename, r.format),
		Content:  []byte(b.String()),
	}, nil
}
