// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/ingestion"
	"github.com/poiesic/larder/media"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "larder",
		Usage: "Recipe ingestion and search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest recipes from video URLs",
				ArgsUsage: "URL [URL...]",
				Action:    ingestCommand,
				Flags:     append(databaseFlags(), ingestFlags()...),
			},
			{
				Name:      "ingest-folder",
				Usage:     "Reindex recipes already stored in the media library",
				ArgsUsage: "[KEY...]",
				Action:    ingestFolderCommand,
				Flags:     append(databaseFlags(), ingestFlags()...),
			},
			{
				Name:      "status",
				Usage:     "Show the state of a job",
				ArgsUsage: "JOB_ID",
				Action:    statusCommand,
				Flags:     databaseFlags(),
			},
			{
				Name:   "jobs",
				Usage:  "List all jobs",
				Action: jobsCommand,
				Flags:  databaseFlags(),
			},
			{
				Name:      "search",
				Usage:     "Search indexed recipes",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: append(databaseFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Similarity floor for semantic hits",
						Value: 0.6,
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Recompute the embeddings of all indexed recipes",
				Action: reembedCommand,
				Flags: append(databaseFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of recipes to process in each batch",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N recipes",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per embedding call",
						Value: 3,
					},
				),
			},
			{
				Name:      "delete",
				Usage:     "Remove recipes from the index",
				ArgsUsage: "KEY [KEY...]",
				Action:    deleteCommand,
				Flags:     databaseFlags(),
			},
		},
	}
}

// databaseFlags locate the index, the media library and the AI services.
func databaseFlags() []cli.Flag {
	defaults := ai.DefaultConfig()
	mediaDefaults := media.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "media-root",
			Usage: "Media library directory",
			Value: mediaDefaults.LibraryRoot,
		},
		&cli.StringFlag{
			Name:  "ai-host",
			Usage: "OpenAI-compatible service host URL",
			Value: defaults.EmbeddingHost,
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for the AI services",
			EnvVars: []string{"LARDER_API_KEY"},
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: defaults.EmbeddingModel,
		},
		&cli.StringFlag{
			Name:  "extractor-model",
			Usage: "Chat model used for recipe extraction",
			Value: defaults.ExtractorModel,
		},
	}
}

func ingestFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:  "language",
			Usage: "Transcription language hint (ISO-639-1)",
			Value: "en",
		},
		&cli.IntFlag{
			Name:  "max-jobs",
			Usage: "Maximum number of jobs processed at once",
			Value: 4,
		},
		&cli.BoolFlag{
			Name:  "no-images",
			Usage: "Do not generate images for recipes without any",
		},
	}, timeoutFlags()...)
}

// timeoutFlags exposes each per-operation timeout as a flag with an
// environment override.
func timeoutFlags() []cli.Flag {
	defaults := ingestion.DefaultTimeouts()
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "timeout-download",
			Usage:   "Timeout for each media download attempt",
			EnvVars: []string{"LARDER_TIMEOUT_DOWNLOAD"},
			Value:   defaults.Download,
		},
		&cli.DurationFlag{
			Name:    "timeout-extract-audio",
			Usage:   "Timeout for audio extraction",
			EnvVars: []string{"LARDER_TIMEOUT_EXTRACT_AUDIO"},
			Value:   defaults.ExtractAudio,
		},
		&cli.DurationFlag{
			Name:    "timeout-transcription",
			Usage:   "Base timeout for each transcription attempt",
			EnvVars: []string{"LARDER_TIMEOUT_TRANSCRIPTION"},
			Value:   defaults.Transcription,
		},
		&cli.DurationFlag{
			Name:    "timeout-extraction",
			Usage:   "Timeout for each recipe extraction attempt",
			EnvVars: []string{"LARDER_TIMEOUT_RECIPE_EXTRACTION"},
			Value:   defaults.Extraction,
		},
		&cli.DurationFlag{
			Name:    "timeout-images",
			Usage:   "Timeout for image generation",
			EnvVars: []string{"LARDER_TIMEOUT_IMAGE_GENERATION"},
			Value:   defaults.Images,
		},
		&cli.DurationFlag{
			Name:    "timeout-indexing",
			Usage:   "Timeout for the final index write",
			EnvVars: []string{"LARDER_TIMEOUT_INDEXING"},
			Value:   defaults.Indexing,
		},
	}
}

func timeoutsFromFlags(c *cli.Context) ingestion.Timeouts {
	return ingestion.Timeouts{
		Download:      c.Duration("timeout-download"),
		ExtractAudio:  c.Duration("timeout-extract-audio"),
		Transcription: c.Duration("timeout-transcription"),
		Extraction:    c.Duration("timeout-extraction"),
		Images:        c.Duration("timeout-images"),
		Indexing:      c.Duration("timeout-indexing"),
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
