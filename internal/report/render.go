package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/matrixci/internal/matrix"
)

var titleCaser = cases.Title(language.English)

// JobTitle renders a human-readable title for a job, e.g. "Linux / Nightly".
func JobTitle(job matrix.Job) string {
	return fmt.Sprintf("%s / %s", titleCaser.String(job.OS), titleCaser.String(job.Channel))
}

// Markdown renders the run report as a Markdown summary.
func Markdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Build run %s\n\n", r.RunID)
	fmt.Fprintf(&b, "- Branch: `%s`\n", r.Branch)
	fmt.Fprintf(&b, "- Started: %s\n", r.Started.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Duration: %s\n", r.Duration.Round(time.Millisecond*10))
	fmt.Fprintf(&b, "- Outcome: **%s**\n\n", r.Outcome())

	b.WriteString("| Job | Outcome | Duration | Notes |\n")
	b.WriteString("|-----|---------|----------|-------|\n")
	for _, j := range r.Jobs {
		note := ""
		if j.Failed() && j.Tolerated {
			note = "failure tolerated"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			JobTitle(j.Job), j.Outcome, j.JobResult.Duration.Round(time.Millisecond*10), note)
	}

	if failed := r.FailedJobs(); len(failed) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, j := range failed {
			for _, s := range j.Steps {
				if s.Error != "" {
					fmt.Fprintf(&b, "- %s, step `%s`: %s\n", JobTitle(j.Job), s.Name, s.Error)
				}
			}
		}
	}

	if r.Published {
		b.WriteString("\nDocumentation was published.\n")
	} else if r.PublishError != "" {
		fmt.Fprintf(&b, "\nDocumentation publish failed: %s\n", r.PublishError)
	}

	return b.String()
}

// HTML renders the run report as a standalone HTML page.
func HTML(r *Report) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(r)), &body); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Build run %s</title></head>\n<body>\n", r.RunID)
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
