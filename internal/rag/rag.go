package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"course-rag/internal/chunker"
	"course-rag/internal/config"
	"course-rag/internal/models"
	"course-rag/internal/orchestrator"
	"course-rag/internal/reader"
	"course-rag/internal/session"
	"course-rag/internal/store"
)

// System ties ingestion, retrieval, sessions and generation together. It is
// the single dependency of the HTTP layer.
type System struct {
	cfg      *config.Config
	chunker  *chunker.Chunker
	store    *store.Store
	sessions *session.Store
	orch     *orchestrator.Orchestrator
}

func New(cfg *config.Config, st *store.Store, sessions *session.Store, orch *orchestrator.Orchestrator) *System {
	return &System{
		cfg:      cfg,
		chunker:  chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		store:    st,
		sessions: sessions,
		orch:     orch,
	}
}

// AddCourseDocument ingests a single file: extract text, parse and chunk,
// then write the catalog record and the content chunks.
func (s *System) AddCourseDocument(ctx context.Context, path string) (models.Course, int, error) {
	text, err := reader.ExtractText(path)
	if err != nil {
		return models.Course{}, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	course, chunks := s.chunker.Chunk(text, filepath.Base(path))
	if err := s.store.AddCourse(ctx, course); err != nil {
		return models.Course{}, 0, err
	}
	if err := s.store.AddChunks(ctx, chunks); err != nil {
		return models.Course{}, 0, err
	}
	return course, len(chunks), nil
}

// AddCourseFolder ingests every supported document in dir, skipping course
// titles already present. Returns the number of courses and chunks added.
func (s *System) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (int, int, error) {
	if clearExisting {
		log.Info().Msg("clearing existing course data")
		if err := s.store.Clear(); err != nil {
			return 0, 0, err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read documents directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && reader.Supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	existing := s.store.ExistingCourseTitles()
	coursesAdded, chunksAdded := 0, 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		text, err := reader.ExtractText(path)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping unreadable document")
			continue
		}
		course, chunks := s.chunker.Chunk(text, name)
		if existing[course.Title] {
			log.Debug().Str("course", course.Title).Msg("course already ingested, skipping")
			continue
		}
		if err := s.store.AddCourse(ctx, course); err != nil {
			return coursesAdded, chunksAdded, err
		}
		if err := s.store.AddChunks(ctx, chunks); err != nil {
			return coursesAdded, chunksAdded, err
		}
		existing[course.Title] = true
		coursesAdded++
		chunksAdded += len(chunks)
		log.Info().Str("course", course.Title).Int("chunks", len(chunks)).Msg("ingested course document")
	}
	return coursesAdded, chunksAdded, nil
}

// Query answers one user question within a session.
func (s *System) Query(ctx context.Context, query, sessionID string) (models.QueryResponse, error) {
	return s.orch.Query(ctx, query, sessionID)
}

// GetCourseOutline resolves a course (exact or fuzzy) to its structure.
func (s *System) GetCourseOutline(ctx context.Context, name string) (models.Course, error) {
	return s.store.GetCourseOutline(ctx, name)
}

// Analytics summarizes the ingested corpus.
func (s *System) Analytics() models.Analytics {
	return s.store.Analytics()
}

// ResetSession forgets a conversation. Unknown ids succeed.
func (s *System) ResetSession(id string) {
	s.sessions.Reset(id)
}
