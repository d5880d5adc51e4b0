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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/cortex"
	"github.com/poiesic/cortex/ai"
	"github.com/poiesic/cortex/ingestion"
	"github.com/poiesic/cortex/search"
)

func main() {
	dbFlag := &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}
	hostFlag := &cli.StringFlag{
		Name:  "host",
		Usage: "OpenAI-compatible service host URL",
		Value: "http://localhost:11434/v1",
	}
	embeddingModelFlag := &cli.StringFlag{
		Name:  "embedding-model",
		Usage: "Embedding model name",
		Value: "nomic-embed-text",
	}
	summarizerModelFlag := &cli.StringFlag{
		Name:  "summarizer-model",
		Usage: "Summarization model name",
		Value: "qwen2.5:3b",
	}

	app := &cli.App{
		Name:  "cortex",
		Usage: "Retrieval and projection core for conversation archives",
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
				Usage:     "Ingest normalized conversations from a JSON file",
				ArgsUsage: "FILE",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					dbFlag,
					hostFlag,
					embeddingModelFlag,
					summarizerModelFlag,
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent ingestion workers",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "reprocess",
						Usage: "Recompute layout and clusters after ingestion",
					},
					&cli.IntFlag{
						Name:  "clusters",
						Usage: "Target cluster count for reprocessing",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for provider calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search indexed conversations",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					dbFlag,
					hostFlag,
					embeddingModelFlag,
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.IntFlag{
						Name:  "cluster",
						Usage: "Restrict results to a cluster id",
						Value: -1,
					},
					&cli.StringSliceFlag{
						Name:  "topic",
						Usage: "Restrict results to conversations tagged with a topic (repeatable)",
					},
				},
			},
			{
				Name:   "reprocess",
				Usage:  "Recompute the 3D layout and cluster assignment",
				Action: reprocessCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:  "clusters",
						Usage: "Target cluster count",
						Value: 5,
					},
				},
			},
			{
				Name:   "visualize",
				Usage:  "Print the current layout snapshot as JSON",
				Action: visualizeCommand,
				Flags:  []cli.Flag{dbFlag},
			},
			{
				Name:      "delete",
				Usage:     "Delete a conversation and its index entries",
				ArgsUsage: "ID",
				Action:    deleteCommand,
				Flags:     []cli.Flag{dbFlag},
			},
			{
				Name:   "stats",
				Usage:  "Print corpus and cluster statistics",
				Action: statsCommand,
				Flags:  []cli.Flag{dbFlag},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// conversationFile is the on-disk JSON shape consumed by the ingest
// command: an array of normalized conversations.
type conversationFile []struct {
	Id        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Topics    []string  `json:"topics"`
	Messages  []string  `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

func openDatabase(c *cli.Context, opts ...cortex.DatabaseOption) (*cortex.Database, error) {
	// Commands without AI flags fall back to the config defaults.
	var configOpts []ai.ConfigOption
	if host := c.String("host"); host != "" {
		configOpts = append(configOpts, ai.WithHost(host))
	}
	if model := c.String("embedding-model"); model != "" {
		configOpts = append(configOpts, ai.WithEmbeddingModel(model))
	}
	if model := c.String("summarizer-model"); model != "" {
		configOpts = append(configOpts, ai.WithSummarizerModel(model))
	}
	aiConfig := ai.NewConfig(configOpts...)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts = append([]cortex.DatabaseOption{cortex.WithAIConfig(aiConfig)}, opts...)
	db, err := cortex.NewDatabase(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("input file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	var file conversationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse input file: %w", err)
	}
	if len(file) == 0 {
		return fmt.Errorf("input file contains no conversations")
	}

	db, err := openDatabase(c, cortex.WithClusterCount(c.Int("clusters")))
	if err != nil {
		return err
	}
	defer db.Close()

	pipelineOpts := []ingestion.Option{
		ingestion.WithPoolSize(c.Int("workers")),
		ingestion.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
	}
	if c.Bool("reprocess") {
		pipelineOpts = append(pipelineOpts, ingestion.WithReprocessor(db.Reprocessor()))
	}
	pipeline, err := db.NewIngestionPipeline(pipelineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	batch := make([]*ingestion.NormalizedConversation, 0, len(file))
	for _, conv := range file {
		batch = append(batch, &ingestion.NormalizedConversation{
			Id:        conv.Id,
			Title:     conv.Title,
			Summary:   conv.Summary,
			Topics:    conv.Topics,
			Messages:  conv.Messages,
			CreatedAt: conv.CreatedAt,
		})
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Conversations: %d\n\n", len(batch))

	result, err := pipeline.IngestBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Ingested %d conversations (%d failed)\n", result.Ingested, result.Failed)
	for _, ingestErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "  %v\n", ingestErr)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d conversations failed to ingest", result.Failed)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("search query is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var filters *search.Filters
	if c.Int("cluster") >= 0 || len(c.StringSlice("topic")) > 0 {
		filters = &search.Filters{Topics: c.StringSlice("topic")}
		if id := c.Int("cluster"); id >= 0 {
			filters.ClusterId = &id
		}
	}

	results, err := db.Search(ctx, query, c.Int("limit"), filters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, result := range results {
		fmt.Printf("%2d. [%.3f] %s (%s)\n", i+1, result.Score, result.Conversation.Title, result.Conversation.Id)
		if result.Snippet != "" {
			fmt.Printf("    %s\n", result.Snippet)
		}
	}
	return nil
}

func reprocessCommand(c *cli.Context) error {
	db, err := openDatabase(c, cortex.WithClusterCount(c.Int("clusters")))
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.Reprocess(context.Background())
	if err != nil {
		return fmt.Errorf("reprocessing failed: %w", err)
	}

	fmt.Printf("Updated %d conversations in %s\n", result.ConversationsUpdated, result.Duration.Round(time.Millisecond))
	for _, stat := range result.ClusterStats {
		fmt.Printf("  cluster %d %q: %d conversations (%.1f%%)\n", stat.ClusterId, stat.Name, stat.Count, stat.Percentage)
	}
	return nil
}

func visualizeCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	viz, err := db.VisualizationData(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load visualization data: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(viz)
}

func deleteCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("conversation id is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteConversation(context.Background(), id); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	fmt.Printf("Deleted %s\n", id)
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	count, err := db.ConversationRepository().CountConversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to count conversations: %w", err)
	}
	entries, err := db.VectorStore().Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count vector entries: %w", err)
	}

	fmt.Printf("Conversations:  %d\n", count)
	fmt.Printf("Vector entries: %d\n", entries)

	viz, err := db.VisualizationData(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cluster statistics: %w", err)
	}
	if len(viz.Clusters) > 0 {
		fmt.Println("Clusters:")
		for _, stat := range viz.Clusters {
			fmt.Printf("  %d %q: %d conversations (%.1f%%)\n", stat.ClusterId, stat.Name, stat.Count, stat.Percentage)
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
