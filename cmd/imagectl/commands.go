package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siva27neelam/story-telling/internal/pipeline"
	"github.com/siva27neelam/story-telling/pkg/enums"
)

func triggerContext(cmd *cobra.Command) *cobra.Command {
	cmd.SetContext(pipeline.WithTrigger(cmd.Context(), pipeline.TriggerCLI))
	return cmd
}

func newMigrateCommand(ctx *commandContext, out func(*cobra.Command) printer) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move legacy cover and page blobs into the object store",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.ensurePipeline(cmd.Context())
			if err != nil {
				return err
			}
			result, err := p.StartMigration(triggerContext(cmd).Context(), batchSize)
			if printErr := out(cmd).runStats(result.Covers, result.Pages, result.Total()); printErr != nil {
				return printErr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per batch (0 uses the configured default)")
	return cmd
}

func newMigrateRecordCommand(ctx *commandContext, out func(*cobra.Command) printer) *cobra.Command {
	var collection string
	var id int64

	cmd := &cobra.Command{
		Use:   "migrate-record",
		Short: "Migrate a single cover or page by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := enums.ParseImageCollection(collection)
			if err != nil {
				return err
			}
			if id <= 0 {
				return fmt.Errorf("--id must be positive")
			}
			p, err := ctx.ensurePipeline(cmd.Context())
			if err != nil {
				return err
			}
			outcome, err := p.MigrateRecord(triggerContext(cmd).Context(), parsed, id)
			if err != nil {
				return err
			}
			return out(cmd).outcome(parsed, id, outcome)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "covers or pages")
	cmd.Flags().Int64Var(&id, "id", 0, "Record id")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newCompressLocalCommand(ctx *commandContext, out func(*cobra.Command) printer) *cobra.Command {
	return &cobra.Command{
		Use:   "compress-local",
		Short: "Resize and re-encode legacy blobs still held in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.ensurePipeline(cmd.Context())
			if err != nil {
				return err
			}
			result, err := p.StartLocalCompressionSweep(triggerContext(cmd).Context())
			if printErr := out(cmd).runStats(result.Covers, result.Pages, result.Total()); printErr != nil {
				return printErr
			}
			return err
		},
	}
}

func newOptimizeCommand(ctx *commandContext, out func(*cobra.Command) printer) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Optimize stored objects through TinyPNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.ensurePipeline(cmd.Context())
			if err != nil {
				return err
			}
			result, err := p.StartRemoteOptimization(triggerContext(cmd).Context())
			if printErr := out(cmd).runStats(result.Covers, result.Pages, result.Total()); printErr != nil {
				return printErr
			}
			return err
		},
	}
}

func newStatusCommand(ctx *commandContext, out func(*cobra.Command) printer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts and the last run of each job",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.ensurePipeline(cmd.Context())
			if err != nil {
				return err
			}
			status, err := p.Status(cmd.Context())
			if err != nil {
				return err
			}
			return out(cmd).status(status)
		},
	}
}

func newURLsCommand(ctx *commandContext, out func(*cobra.Command) printer) *cobra.Command {
	var (
		collection string
		afterID    int64
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "urls",
		Short: "List migrated records with their object key and CDN URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := enums.ParseImageCollection(collection)
			if err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			p, err := ctx.ensurePipeline(cmd.Context())
			if err != nil {
				return err
			}
			images, err := p.MigratedImages(cmd.Context(), parsed, afterID, limit)
			if err != nil {
				return err
			}
			return out(cmd).migratedImages(images)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "covers or pages")
	cmd.Flags().Int64Var(&afterID, "after", 0, "Only list ids greater than this")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum records to list")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}
