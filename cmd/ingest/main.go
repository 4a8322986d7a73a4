// Command ingest splits textbook chapter files into sections, embeds them,
// and upserts the vectors into the Qdrant collection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/config"
	"github.com/physical-ai/tutor-api/internal/domain"
	logpkg "github.com/physical-ai/tutor-api/internal/logger"
	qdrantrepo "github.com/physical-ai/tutor-api/internal/repository/qdrant"
	openaiTransport "github.com/physical-ai/tutor-api/internal/transport/openai"
)

var (
	chapterFilePattern  = regexp.MustCompile(`^Chapter (\d+)`)
	frontmatterPattern  = regexp.MustCompile(`(?s)^---\s*\n.*?\n---\s*\n`)
	sectionSplitPattern = regexp.MustCompile(`\n## `)
)

func main() {
	booksDir := flag.String("dir", "docs/BOOK", "directory with Chapter*.md files")
	flag.Parse()

	_ = godotenv.Load()

	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, *booksDir, logger); err != nil {
		logger.Fatal("Ingestion failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, booksDir string, logger *zap.Logger) error {
	store, err := qdrantrepo.NewStore(&qdrantrepo.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create qdrant store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Qdrant.TimeoutSec)*time.Second); err != nil {
		return err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return err
	}

	var embedder domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	if cfg.Embedding.DocumentInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.Embedding.DocumentInstruction)
	}

	files, err := chapterFiles(booksDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no chapter files found in %s", booksDir)
	}

	logger.Info("Starting ingestion",
		zap.String("dir", booksDir),
		zap.Int("chapters", len(files)),
		zap.String("collection", cfg.Qdrant.Collection),
	)

	total := 0
	for _, file := range files {
		n, err := ingestChapter(ctx, store, embedder, file, logger)
		if err != nil {
			return fmt.Errorf("chapter %s: %w", filepath.Base(file), err)
		}
		total += n
	}

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}

	logger.Info("Ingestion done",
		zap.Int("ingested_chunks", total),
		zap.Uint64("collection_total", count),
	)
	return nil
}

func ingestChapter(
	ctx context.Context,
	store *qdrantrepo.Store,
	embedder domain.Embedder,
	path string,
	logger *zap.Logger,
) (int, error) {
	chapterNum, ok := chapterNumber(filepath.Base(path))
	if !ok {
		return 0, fmt.Errorf("cannot parse chapter number from %s", filepath.Base(path))
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	sections := splitSections(stripFrontmatter(string(raw)))

	chunks := make([]qdrantrepo.Chunk, 0, len(sections))
	for _, section := range sections {
		result, err := embedder.Embed(ctx, section.body)
		if err != nil {
			return 0, fmt.Errorf("embed section %q: %w", section.title, err)
		}
		chunks = append(chunks, qdrantrepo.Chunk{
			ID:        uuid.NewString(),
			Embedding: result.Embedding,
			Chapter:   chapterNum,
			Section:   section.title,
			Content:   section.body,
		})
	}

	if err := store.Upsert(ctx, chunks); err != nil {
		return 0, err
	}

	logger.Info("Processed chapter",
		zap.Int("chapter", chapterNum),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// chapterFiles lists Chapter*.md files sorted by name.
func chapterFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "Chapter*.md"))
	if err != nil {
		return nil, fmt.Errorf("glob chapters: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

func chapterNumber(filename string) (int, bool) {
	m := chapterFilePattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// stripFrontmatter removes a leading YAML frontmatter block, if present.
func stripFrontmatter(content string) string {
	return frontmatterPattern.ReplaceAllString(content, "")
}

type section struct {
	title string
	body  string
}

// splitSections breaks chapter content on "## " headings. The heading line
// becomes the section title; the text before the first heading keeps an
// empty title.
func splitSections(content string) []section {
	parts := sectionSplitPattern.Split(content, -1)

	sections := make([]section, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		title := ""
		body := part
		if i > 0 {
			// First line of a split part is the heading text.
			if line, rest, found := strings.Cut(part, "\n"); found {
				title = strings.TrimSpace(line)
				body = title + "\n" + strings.TrimSpace(rest)
			} else {
				title = strings.TrimSpace(part)
			}
		}
		sections = append(sections, section{title: title, body: body})
	}
	return sections
}
