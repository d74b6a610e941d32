package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"course-rag/internal/models"
	"course-rag/internal/store"
)

// Result is what a tool execution hands back: the text the model sees plus
// the structured citation sources the orchestrator collects. Sources travel
// in the return value, not in tool-local state, so draining them cannot race
// or go stale across turns.
type Result struct {
	Output  string
	Sources []models.Source
}

// Tool is a capability the model may invoke mid-conversation.
type Tool interface {
	Definition() llms.Tool
	Execute(ctx context.Context, args string) (Result, error)
}

// SemanticStore is the retrieval surface the tools depend on.
type SemanticStore interface {
	Search(ctx context.Context, query, courseName string, lessonNumber *int, limit *int) (models.SearchResult, error)
	GetCourseOutline(ctx context.Context, name string) (models.Course, error)
}

// Registry dispatches tool calls by name.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		name := t.Definition().Function.Name
		r.order = append(r.order, name)
		r.tools[name] = t
	}
	return r
}

// Definitions lists every tool schema in registration order, ready to pass
// to the model.
func (r *Registry) Definitions() []llms.Tool {
	defs := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute runs the named tool. An unknown name degrades to sentinel text
// the model can recover from; only infrastructure failures return an error.
func (r *Registry) Execute(ctx context.Context, name, args string) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{Output: fmt.Sprintf("Tool '%s' not found", name)}, nil
	}
	return t.Execute(ctx, args)
}

// SearchTool exposes semantic content search with fuzzy course matching and
// lesson filtering.
type SearchTool struct {
	store SemanticStore
}

func NewSearchTool(s SemanticStore) *SearchTool { return &SearchTool{store: s} }

func (t *SearchTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "search_course_content",
			Description: "Search course materials with smart course name matching and lesson filtering",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to search for in the course content",
					},
					"course_name": map[string]any{
						"type":        "string",
						"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
					"lesson_number": map[string]any{
						"type":        "integer",
						"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

type searchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

// Execute runs the search. "No matching course" and empty hits become
// human-readable sentinel text fed back to the model; store failures
// propagate as errors and fail the turn.
func (t *SearchTool) Execute(ctx context.Context, args string) (Result, error) {
	var in searchArgs
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return Result{Output: fmt.Sprintf("Invalid search arguments: %v", err)}, nil
	}

	results, err := t.store.Search(ctx, in.Query, in.CourseName, in.LessonNumber, nil)
	if errors.Is(err, store.ErrCourseNotFound) {
		return Result{Output: fmt.Sprintf("No course found matching '%s'", in.CourseName)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if results.IsEmpty() {
		return Result{Output: emptyMessage(in)}, nil
	}
	return formatResults(results), nil
}

func emptyMessage(in searchArgs) string {
	var filter strings.Builder
	if in.CourseName != "" {
		fmt.Fprintf(&filter, " in course '%s'", in.CourseName)
	}
	if in.LessonNumber != nil {
		fmt.Fprintf(&filter, " in lesson %d", *in.LessonNumber)
	}
	return fmt.Sprintf("No relevant content found%s.", filter.String())
}

func formatResults(results models.SearchResult) Result {
	formatted := make([]string, 0, len(results.Hits))
	sources := make([]models.Source, 0, len(results.Hits))
	for _, hit := range results.Hits {
		label := hit.CourseTitle
		if hit.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", hit.CourseTitle, *hit.LessonNumber)
		}
		formatted = append(formatted, fmt.Sprintf("[%s]\n%s", label, hit.Content))
		sources = append(sources, models.Source{Label: label, Link: hit.LessonLink})
	}
	return Result{Output: strings.Join(formatted, "\n\n"), Sources: sources}
}

// OutlineTool returns a course's full structure: title, instructor, link and
// the numbered lesson list.
type OutlineTool struct {
	store SemanticStore
}

func NewOutlineTool(s SemanticStore) *OutlineTool { return &OutlineTool{store: s} }

func (t *OutlineTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "get_course_outline",
			Description: "Get the complete outline/structure of a course including all lessons. Use this when users ask about course contents, lesson list, or course structure.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"course_name": map[string]any{
						"type":        "string",
						"description": "Course title or name (partial matches work)",
					},
				},
				"required": []string{"course_name"},
			},
		},
	}
}

type outlineArgs struct {
	CourseName string `json:"course_name"`
}

func (t *OutlineTool) Execute(ctx context.Context, args string) (Result, error) {
	var in outlineArgs
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return Result{Output: fmt.Sprintf("Invalid outline arguments: %v", err)}, nil
	}

	course, err := t.store.GetCourseOutline(ctx, in.CourseName)
	if errors.Is(err, store.ErrCourseNotFound) {
		return Result{Output: fmt.Sprintf("No course found matching '%s'", in.CourseName)}, nil
	}
	if err != nil {
		return Result{}, err
	}

	return Result{
		Output:  formatOutline(course),
		Sources: []models.Source{{Label: course.Title, Link: course.CourseLink}},
	}, nil
}

func formatOutline(course models.Course) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Course:** %s\n", course.Title)
	if course.Instructor != "" {
		fmt.Fprintf(&sb, "**Instructor:** %s\n", course.Instructor)
	}
	if course.CourseLink != "" {
		fmt.Fprintf(&sb, "**Course Link:** %s\n", course.CourseLink)
	}
	fmt.Fprintf(&sb, "\n**Course Outline** (%d lessons):\n", len(course.Lessons))
	for _, lesson := range course.Lessons {
		fmt.Fprintf(&sb, "\n**Lesson %d:** %s\n", lesson.Number, lesson.Title)
		if lesson.Link != "" {
			fmt.Fprintf(&sb, "%s\n", lesson.Link)
		}
	}
	return sb.String()
}
