package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"course-rag/internal/models"
	"course-rag/internal/store"
)

type fakeRAG struct {
	queryResp  models.QueryResponse
	queryErr   error
	outline    models.Course
	outlineErr error
	analytics  models.Analytics

	resetIDs []string
}

func (f *fakeRAG) Query(_ context.Context, query, sessionID string) (models.QueryResponse, error) {
	if f.queryErr != nil {
		return models.QueryResponse{}, f.queryErr
	}
	resp := f.queryResp
	if resp.SessionID == "" {
		resp.SessionID = sessionID
	}
	return resp, nil
}

func (f *fakeRAG) GetCourseOutline(_ context.Context, _ string) (models.Course, error) {
	return f.outline, f.outlineErr
}

func (f *fakeRAG) Analytics() models.Analytics { return f.analytics }

func (f *fakeRAG) ResetSession(id string) { f.resetIDs = append(f.resetIDs, id) }

func doRequest(t *testing.T, sys RAGSystem, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := NewEcho(sys)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, &fakeRAG{}, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	sys := &fakeRAG{queryResp: models.QueryResponse{
		Answer:    "MCP is a protocol.",
		Sources:   []models.Source{{Label: "MCP Course - Lesson 1", Link: "https://example.com/l1"}},
		SessionID: "sess-1",
	}}
	rec := doRequest(t, sys, http.MethodPost, "/api/query", `{"query":"What is MCP?","session_id":"sess-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got models.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Answer != "MCP is a protocol." || got.SessionID != "sess-1" {
		t.Errorf("unexpected response %+v", got)
	}
	if len(got.Sources) != 1 || got.Sources[0].Link != "https://example.com/l1" {
		t.Errorf("sources missing from response: %+v", got.Sources)
	}
}

func TestQueryEndpointRequiresQuery(t *testing.T) {
	rec := doRequest(t, &fakeRAG{}, http.MethodPost, "/api/query", `{"session_id":"sess-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryEndpointGenerationFailure(t *testing.T) {
	sys := &fakeRAG{queryErr: errors.New("generation failed: connection refused")}
	rec := doRequest(t, sys, http.MethodPost, "/api/query", `{"query":"hello"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected JSON error body, got %s", rec.Body.String())
	}
}

func TestCoursesEndpoint(t *testing.T) {
	sys := &fakeRAG{analytics: models.Analytics{TotalCourses: 2, CourseTitles: []string{"A", "B"}}}
	rec := doRequest(t, sys, http.MethodGet, "/api/courses", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got models.Analytics
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalCourses != 2 || len(got.CourseTitles) != 2 {
		t.Errorf("unexpected analytics %+v", got)
	}
}

func TestOutlineEndpoint(t *testing.T) {
	sys := &fakeRAG{outline: models.Course{
		Title:   "MCP Course",
		Lessons: []models.Lesson{{Number: 0, Title: "Intro"}},
	}}
	rec := doRequest(t, sys, http.MethodGet, "/api/courses/outline?course=MCP", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got models.Course
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "MCP Course" || len(got.Lessons) != 1 {
		t.Errorf("unexpected outline %+v", got)
	}
}

func TestOutlineEndpointMissingParam(t *testing.T) {
	rec := doRequest(t, &fakeRAG{}, http.MethodGet, "/api/courses/outline", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOutlineEndpointNotFound(t *testing.T) {
	sys := &fakeRAG{outlineErr: store.ErrCourseNotFound}
	rec := doRequest(t, sys, http.MethodGet, "/api/courses/outline?course=Ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Ghost") {
		t.Errorf("404 body should name the course: %s", rec.Body.String())
	}
}

func TestResetSessionEndpoint(t *testing.T) {
	sys := &fakeRAG{}
	rec := doRequest(t, sys, http.MethodDelete, "/api/session/sess-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// Unknown ids are still ok.
	rec = doRequest(t, sys, http.MethodDelete, "/api/session/never-seen", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown session, got %d", rec.Code)
	}
	if len(sys.resetIDs) != 2 || sys.resetIDs[0] != "sess-1" {
		t.Errorf("reset ids not forwarded: %v", sys.resetIDs)
	}
}
