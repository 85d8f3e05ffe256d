package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/poiesic/larder"
	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/ingestion"
	"github.com/poiesic/larder/media"
	"github.com/poiesic/larder/reembed"
	"github.com/poiesic/larder/retry"
	"github.com/poiesic/larder/search"
	"github.com/urfave/cli/v2"
)

const pollInterval = 500 * time.Millisecond

func openDatabase(c *cli.Context) (*larder.Database, error) {
	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("ai-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithExtractorModel(c.String("extractor-model")),
		ai.WithAPIKey(c.String("api-key")),
	)
	if c.IsSet("language") {
		aiConfig.Language = c.String("language")
	}
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	mediaConfig := media.DefaultConfig()
	mediaConfig.LibraryRoot = c.String("media-root")

	db, err := larder.NewDatabase(dbPath,
		larder.WithAIConfig(aiConfig),
		larder.WithMediaConfig(mediaConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one URL is required")
	}
	urls := c.Args().Slice()
	for _, raw := range urls {
		if media.KeyFromURL(raw) == "" {
			return fmt.Errorf("cannot derive a key from %q", raw)
		}
	}
	return runIngest(c, core.URLItems(urls...))
}

func ingestFolderCommand(c *cli.Context) error {
	keys := c.Args().Slice()
	if len(keys) == 0 {
		var err error
		keys, err = media.NewLibrary(c.String("media-root")).Keys()
		if err != nil {
			return fmt.Errorf("failed to list media library: %w", err)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("no folders found in %s", c.String("media-root"))
	}
	return runIngest(c, core.FolderItems(keys...))
}

func runIngest(c *cli.Context, items []core.WorkItem) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	orchestrator, err := db.NewOrchestrator(
		ingestion.WithTimeouts(timeoutsFromFlags(c)),
		ingestion.WithMaxConcurrentJobs(c.Int("max-jobs")),
		ingestion.WithLanguage(c.String("language")),
		ingestion.WithImageGeneration(!c.Bool("no-images")),
	)
	if err != nil {
		return err
	}
	defer orchestrator.Close()

	ctx := context.Background()
	jobID, err := orchestrator.Submit(ctx, items...)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Job %s: %d items\n", jobID, len(items))

	job, err := waitForJob(ctx, orchestrator, jobID, c.App.ErrWriter)
	if err != nil {
		return err
	}
	if err := printJSON(c.App.Writer, job); err != nil {
		return err
	}
	if job.Status == core.JobFailed {
		return cli.Exit(fmt.Sprintf("job failed: %s", job.Detail), 1)
	}
	return nil
}

// waitForJob reports progress on w until the job finishes.
func waitForJob(ctx context.Context, orchestrator *ingestion.Orchestrator, jobID string, w io.Writer) (*core.JobState, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	var job *core.JobState
	var waitErr error
	go func() {
		defer close(done)
		job, waitErr = orchestrator.Wait(ctx, jobID)
	}()

	for {
		select {
		case <-done:
			fmt.Fprintln(w)
			return job, waitErr
		case <-ticker.C:
			state, err := orchestrator.Status(ctx, jobID)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "\r%5.1f%% %-14s %d ok, %d failed of %d",
				state.Progress.Percentage, state.Progress.Stage,
				state.Progress.Success, state.Progress.Failed, state.Progress.Total)
		}
	}
}

func statusCommand(c *cli.Context) error {
	jobID := c.Args().First()
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	job, err := db.Tracker().Get(context.Background(), jobID)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, job)
}

func jobsCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	all, err := db.Tracker().List(context.Background())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB ID\tSTATUS\tITEMS\tOK\tFAILED\tCREATED")
	for _, job := range all {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			job.JobID, job.Status, job.Progress.Total, job.Progress.Success,
			job.Progress.Failed, job.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func searchCommand(c *cli.Context) error {
	query := c.Args().Slice()
	if len(query) == 0 {
		return fmt.Errorf("query is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(search.WithMinSimilarity(float32(c.Float64("min-similarity"))))
	if err != nil {
		return err
	}

	results, err := searcher.FindSimilar(context.Background(), strings.Join(query, " "), c.Int("limit"))
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			return fmt.Errorf("query is required")
		}
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(c.App.Writer, "%d: %s (%s)[%0.3f]\n", i+1, hit.Recipe.Recipe.Title, hit.Recipe.Recipe.Key, hit.Score)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Policy:         retry.DefaultPolicy().WithMaxAttempts(c.Int("max-retries")),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.Policy.MaxAttempts <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", c.String("db"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", c.String("ai-host"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := reembedder.Run(context.Background()); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one key is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := db.DeleteRecipes(context.Background(), c.Args().Slice()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Removed %d of %d recipes\n", removed, c.NArg())
	return nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
