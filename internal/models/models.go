package models

// Lesson is a single numbered lesson inside a course document.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Course holds the identity and structure of one ingested document.
// The title is the unique key across the whole corpus.
type Course struct {
	Title      string   `json:"title"`
	Instructor string   `json:"instructor,omitempty"`
	CourseLink string   `json:"course_link,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Chunk is the unit of semantic retrieval: a bounded text window cut from a
// lesson body. LessonNumber is nil for content outside any lesson marker.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
}

// SearchHit is one ranked match from the content collection.
type SearchHit struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
	LessonLink   string
	Distance     float32
}

// SearchResult is an ordered sequence of hits, closest first. An empty
// result is a normal value, not an error.
type SearchResult struct {
	Hits []SearchHit
}

// IsEmpty reports whether the search matched no content.
func (r SearchResult) IsEmpty() bool { return len(r.Hits) == 0 }

// Source is a citation attached to an answer.
type Source struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

// QueryResponse is what the orchestrator hands back for one user turn.
type QueryResponse struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
}

// Analytics summarizes the ingested corpus.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}
