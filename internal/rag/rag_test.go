package rag

import (
	"context"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"

	"course-rag/internal/config"
	"course-rag/internal/session"
	"course-rag/internal/store"
)

func fakeEmbedding(_ context.Context, text string) ([]float32, error) {
	const dims = 64
	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,!?:")))
		vec[h.Sum32()%dims]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		norm = 1
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

func newTestSystem(t *testing.T) (*System, *store.Store) {
	t.Helper()
	st, err := store.New("", true, chromem.EmbeddingFunc(fakeEmbedding), 5)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	cfg := &config.Config{}
	cfg.RAG.ChunkSize = 200
	cfg.RAG.ChunkOverlap = 40
	sys := New(cfg, st, session.NewStore(2), nil)
	return sys, st
}

const courseDoc = `Course Title: Test Course
Course Instructor: Jane Doe
Course Link: https://example.com/test

Lesson 0: Getting Started
Lesson Link: https://example.com/test/l0
This is the opening lesson. It explains the fundamentals clearly.

Lesson 1: Going Deeper
More advanced material follows here. Every concept builds on the last.
`

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "course1.txt"), []byte(courseDoc), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	// Unsupported files are ignored, not errors.
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return dir
}

func TestAddCourseFolder(t *testing.T) {
	sys, st := newTestSystem(t)
	dir := writeDocs(t)

	courses, chunks, err := sys.AddCourseFolder(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("AddCourseFolder: %v", err)
	}
	if courses != 1 {
		t.Fatalf("expected 1 course, got %d", courses)
	}
	if chunks == 0 {
		t.Fatal("expected chunks")
	}

	analytics := st.Analytics()
	if analytics.TotalCourses != 1 || analytics.CourseTitles[0] != "Test Course" {
		t.Fatalf("unexpected analytics %+v", analytics)
	}

	result, err := st.Search(context.Background(), "opening lesson fundamentals", "", nil, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.IsEmpty() {
		t.Fatal("ingested content not searchable")
	}
}

func TestAddCourseFolderSkipsExisting(t *testing.T) {
	sys, _ := newTestSystem(t)
	dir := writeDocs(t)

	if _, _, err := sys.AddCourseFolder(context.Background(), dir, false); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	courses, chunks, err := sys.AddCourseFolder(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if courses != 0 || chunks != 0 {
		t.Fatalf("expected existing course to be skipped, got %d courses %d chunks", courses, chunks)
	}
}

func TestAddCourseFolderClearExisting(t *testing.T) {
	sys, st := newTestSystem(t)
	dir := writeDocs(t)

	if _, _, err := sys.AddCourseFolder(context.Background(), dir, false); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	courses, _, err := sys.AddCourseFolder(context.Background(), dir, true)
	if err != nil {
		t.Fatalf("clearing ingest: %v", err)
	}
	if courses != 1 {
		t.Fatalf("expected rebuild to re-add the course, got %d", courses)
	}
	if got := st.Analytics(); got.TotalCourses != 1 {
		t.Fatalf("unexpected analytics after rebuild %+v", got)
	}
}

func TestAddCourseFolderMissingDir(t *testing.T) {
	sys, _ := newTestSystem(t)
	if _, _, err := sys.AddCourseFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), false); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestAddCourseDocument(t *testing.T) {
	sys, st := newTestSystem(t)
	dir := writeDocs(t)

	course, chunks, err := sys.AddCourseDocument(context.Background(), filepath.Join(dir, "course1.txt"))
	if err != nil {
		t.Fatalf("AddCourseDocument: %v", err)
	}
	if course.Title != "Test Course" || chunks == 0 {
		t.Fatalf("unexpected ingest result %q / %d chunks", course.Title, chunks)
	}

	outline, err := st.GetCourseOutline(context.Background(), "Test Course")
	if err != nil {
		t.Fatalf("GetCourseOutline: %v", err)
	}
	if len(outline.Lessons) != 2 || outline.Lessons[1].Title != "Going Deeper" {
		t.Fatalf("unexpected outline %+v", outline)
	}
}
