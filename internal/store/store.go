package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"course-rag/internal/models"
)

// ErrCourseNotFound reports that fuzzy course-name resolution or an outline
// lookup matched nothing. Callers surface it as sentinel text or a 404,
// never as a crash.
var ErrCourseNotFound = errors.New("no matching course")

const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"

	metaCourseTitle  = "course_title"
	metaLessonNumber = "lesson_number"
	metaChunkIndex   = "chunk_index"
	metaInstructor   = "instructor"
	metaCourseLink   = "course_link"
	metaLessonsJSON  = "lessons_json"
)

// Store is the semantic retrieval layer: a catalog collection with one entry
// per course (embedded over the title, for fuzzy name resolution) and a
// content collection with one entry per chunk.
type Store struct {
	db         *chromem.DB
	catalog    *chromem.Collection
	content    *chromem.Collection
	embedFn    chromem.EmbeddingFunc
	maxResults int

	mu     sync.RWMutex
	titles map[string]bool
}

// New opens (or creates) the vector database. maxResults is the default
// search limit and must be positive.
func New(dbPath string, inMemory bool, embedFn chromem.EmbeddingFunc, maxResults int) (*Store, error) {
	if maxResults <= 0 {
		return nil, fmt.Errorf("configuration error: max results must be positive, got %d", maxResults)
	}

	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
	}

	s := &Store{db: db, embedFn: embedFn, maxResults: maxResults, titles: make(map[string]bool)}
	if err := s.openCollections(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) openCollections() error {
	catalog, err := s.db.GetOrCreateCollection(catalogCollection, nil, s.embedFn)
	if err != nil {
		return fmt.Errorf("failed to open catalog collection: %w", err)
	}
	content, err := s.db.GetOrCreateCollection(contentCollection, nil, s.embedFn)
	if err != nil {
		return fmt.Errorf("failed to open content collection: %w", err)
	}
	s.catalog = catalog
	s.content = content
	return nil
}

// AddCourse writes one catalog record keyed by the exact course title. The
// embedding covers only the title; the payload carries the full lesson list
// for outline queries.
func (s *Store) AddCourse(ctx context.Context, course models.Course) error {
	lessonsJSON, err := json.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("failed to encode lessons: %w", err)
	}
	doc := chromem.Document{
		ID:      course.Title,
		Content: course.Title,
		Metadata: map[string]string{
			metaInstructor:  course.Instructor,
			metaCourseLink:  course.CourseLink,
			metaLessonsJSON: string(lessonsJSON),
		},
	}
	if err := s.catalog.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add course to catalog: %w", err)
	}

	s.mu.Lock()
	s.titles[course.Title] = true
	s.mu.Unlock()
	return nil
}

// AddChunks writes content records. IDs derive from (course_title,
// chunk_index), so re-ingesting an unchanged document overwrites in place.
func (s *Store) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		meta := map[string]string{
			metaCourseTitle: chunk.CourseTitle,
			metaChunkIndex:  strconv.Itoa(chunk.ChunkIndex),
		}
		if chunk.LessonNumber != nil {
			meta[metaLessonNumber] = strconv.Itoa(*chunk.LessonNumber)
		}
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("%s-%d", chunk.CourseTitle, chunk.ChunkIndex),
			Content:  chunk.Content,
			Metadata: meta,
		})
	}
	if err := s.content.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add chunks: %w", err)
	}
	return nil
}

// ResolveCourseName maps a fuzzy course name to the exact catalog title via
// nearest-neighbor lookup. The single best match wins regardless of
// distance; a resolved-but-unrelated title is a caller-visible risk, not a
// store error.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	if s.catalog.Count() == 0 {
		return "", ErrCourseNotFound
	}
	results, err := s.catalog.Query(ctx, name, 1, nil, nil)
	if err != nil {
		return "", fmt.Errorf("course name resolution failed: %w", err)
	}
	if len(results) == 0 {
		return "", ErrCourseNotFound
	}
	return results[0].ID, nil
}

// Search runs a similarity query over the content collection. courseName,
// lessonNumber and limit are optional; a given course name is resolved
// fuzzily first and ErrCourseNotFound propagates if it matches nothing.
func (s *Store) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit *int) (models.SearchResult, error) {
	n := s.maxResults
	if limit != nil {
		if *limit <= 0 {
			return models.SearchResult{}, fmt.Errorf("configuration error: search limit must be positive, got %d", *limit)
		}
		n = *limit
	}

	where := map[string]string{}
	if courseName != "" {
		title, err := s.ResolveCourseName(ctx, courseName)
		if err != nil {
			return models.SearchResult{}, err
		}
		where[metaCourseTitle] = title
	}
	if lessonNumber != nil {
		where[metaLessonNumber] = strconv.Itoa(*lessonNumber)
	}
	if len(where) == 0 {
		where = nil
	}

	count := s.content.Count()
	if count == 0 {
		return models.SearchResult{}, nil
	}
	if n > count {
		n = count
	}

	results, err := s.content.Query(ctx, query, n, where, nil)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("content search failed: %w", err)
	}

	links := map[string]map[int]string{}
	hits := make([]models.SearchHit, 0, len(results))
	for _, res := range results {
		hit := models.SearchHit{
			Content:     res.Content,
			CourseTitle: res.Metadata[metaCourseTitle],
			Distance:    1 - res.Similarity,
		}
		if idx, err := strconv.Atoi(res.Metadata[metaChunkIndex]); err == nil {
			hit.ChunkIndex = idx
		}
		if raw, ok := res.Metadata[metaLessonNumber]; ok {
			if num, err := strconv.Atoi(raw); err == nil {
				hit.LessonNumber = &num
				hit.LessonLink = s.lessonLink(ctx, links, hit.CourseTitle, num)
			}
		}
		hits = append(hits, hit)
	}

	// Ascending distance; chunk index breaks ties for determinism.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
	return models.SearchResult{Hits: hits}, nil
}

// lessonLink resolves the link for a (course, lesson) pair from the catalog
// payload, memoizing per search call.
func (s *Store) lessonLink(ctx context.Context, cache map[string]map[int]string, title string, lesson int) string {
	byLesson, ok := cache[title]
	if !ok {
		byLesson = map[int]string{}
		if course, err := s.courseByTitle(ctx, title); err == nil {
			for _, l := range course.Lessons {
				byLesson[l.Number] = l.Link
			}
		}
		cache[title] = byLesson
	}
	return byLesson[lesson]
}

// GetCourseOutline returns the full course record. Exact titles skip the
// embedding lookup; anything else goes through fuzzy resolution.
func (s *Store) GetCourseOutline(ctx context.Context, name string) (models.Course, error) {
	if course, err := s.courseByTitle(ctx, name); err == nil {
		return course, nil
	}
	title, err := s.ResolveCourseName(ctx, name)
	if err != nil {
		return models.Course{}, err
	}
	return s.courseByTitle(ctx, title)
}

func (s *Store) courseByTitle(ctx context.Context, title string) (models.Course, error) {
	doc, err := s.catalog.GetByID(ctx, title)
	if err != nil {
		return models.Course{}, ErrCourseNotFound
	}
	course := models.Course{
		Title:      doc.ID,
		Instructor: doc.Metadata[metaInstructor],
		CourseLink: doc.Metadata[metaCourseLink],
	}
	if raw := doc.Metadata[metaLessonsJSON]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &course.Lessons); err != nil {
			return models.Course{}, fmt.Errorf("failed to decode lessons for %q: %w", title, err)
		}
	}
	return course, nil
}

// ExistingCourseTitles reports the titles ingested during this process
// lifetime, used to skip unchanged documents.
func (s *Store) ExistingCourseTitles() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.titles))
	for t := range s.titles {
		out[t] = true
	}
	return out
}

// Analytics summarizes the ingested corpus.
func (s *Store) Analytics() models.Analytics {
	s.mu.RLock()
	titles := make([]string, 0, len(s.titles))
	for t := range s.titles {
		titles = append(titles, t)
	}
	s.mu.RUnlock()
	sort.Strings(titles)
	return models.Analytics{TotalCourses: len(titles), CourseTitles: titles}
}

// Clear drops and recreates both collections.
func (s *Store) Clear() error {
	if err := s.db.DeleteCollection(catalogCollection); err != nil {
		return fmt.Errorf("failed to drop catalog collection: %w", err)
	}
	if err := s.db.DeleteCollection(contentCollection); err != nil {
		return fmt.Errorf("failed to drop content collection: %w", err)
	}
	s.mu.Lock()
	s.titles = make(map[string]bool)
	s.mu.Unlock()
	return s.openCollections()
}
