package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/siva27neelam/story-telling/internal/pipeline"
	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/enums"
)

type printer struct {
	cmd  *cobra.Command
	json bool
}

func (p printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) runStats(covers, pages, total stats.RunStats) error {
	if p.json {
		return p.writeJSON(map[string]stats.RunStats{"covers": covers, "pages": pages, "total": total})
	}
	w := p.cmd.OutOrStdout()
	if _, err := fmt.Fprintf(w, "covers: %s\npages:  %s\n", covers, pages); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "total:  %s\n", total)
	return err
}

func (p printer) outcome(collection enums.ImageCollection, id int64, outcome stats.Outcome) error {
	if p.json {
		payload := map[string]any{
			"collection": collection,
			"id":         id,
			"outcome":    outcome.Kind,
			"bytes":      outcome.Bytes,
		}
		if outcome.Err != nil {
			payload["error"] = outcome.Err.Error()
		}
		return p.writeJSON(payload)
	}
	line := fmt.Sprintf("%s %d: %s", collection, id, outcome.Kind)
	switch {
	case outcome.Err != nil:
		line += " (" + outcome.Err.Error() + ")"
	case outcome.Bytes > 0:
		line += " (" + humanize.IBytes(uint64(outcome.Bytes)) + ")"
	}
	_, err := fmt.Fprintln(p.cmd.OutOrStdout(), line)
	return err
}

func (p printer) status(status *pipeline.Status) error {
	if p.json {
		return p.writeJSON(status)
	}
	tw := tabwriter.NewWriter(p.cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tTOTAL\tMIGRATED\tCOMPRESSED")
	for _, collection := range enums.ImageCollections() {
		counts := status.Collections[collection]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", collection, counts.Total, counts.Migrated, counts.LocallyCompressed)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "JOB\tRUNNING\tLAST RUN\tRESULT")
	jobs := make([]string, 0, len(status.Jobs))
	for name := range status.Jobs {
		jobs = append(jobs, name)
	}
	sort.Strings(jobs)
	for _, name := range jobs {
		job := status.Jobs[name]
		last, result := "never", "-"
		if job.LastRun != nil {
			last = humanize.Time(job.LastRun.FinishedAt) + " (" + job.LastRun.Trigger + ")"
			result = job.LastRun.Total.String()
			if job.LastRun.Error != "" {
				result += " error: " + job.LastRun.Error
			}
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", name, job.Running, last, result)
	}
	return tw.Flush()
}

func (p printer) migratedImages(images []pipeline.MigratedImage) error {
	if p.json {
		return p.writeJSON(images)
	}
	tw := tabwriter.NewWriter(p.cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOBJECT\tURL")
	for _, img := range images {
		url := img.URL
		if url == "" {
			url = "-"
		}
		fmt.Fprintf(tw, "%d\t%s/%s\t%s\n", img.ID, img.Bucket, img.Key, url)
	}
	return tw.Flush()
}
