package chunker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"course-rag/internal/models"
)

const (
	defaultChunkSize    = 800 // chars
	defaultChunkOverlap = 100 // chars
)

// Chunker turns one course document into its Course record and an ordered
// sequence of retrieval chunks. Chunk windows are sentence-aware and never
// span two lessons.
type Chunker struct {
	maxChars     int
	overlapChars int
}

func New(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = defaultChunkSize
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = defaultChunkOverlap
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

var (
	courseTitleRe      = regexp.MustCompile(models.CourseTitleRegex)
	courseInstructorRe = regexp.MustCompile(models.CourseInstructorRegex)
	courseLinkRe       = regexp.MustCompile(models.CourseLinkRegex)
	lessonMarkerRe     = regexp.MustCompile(models.LessonMarkerRegex)
	lessonLinkRe       = regexp.MustCompile(models.LessonLinkRegex)
)

// lessonBody is a parsed stretch of text belonging to at most one lesson.
type lessonBody struct {
	number *int
	text   string
}

// Chunk parses the document header and lesson markers, then windows each
// lesson body. A document with no recognizable header degrades to a single
// unlabelled lesson titled after fallbackTitle; it never fails.
func (c *Chunker) Chunk(documentText, fallbackTitle string) (models.Course, []models.Chunk) {
	course, bodies := c.parse(documentText, fallbackTitle)

	var chunks []models.Chunk
	for _, body := range bodies {
		for _, window := range c.windows(body.text) {
			content := window
			if len(chunks) == 0 {
				content = contextHeader(course.Title, body.number) + content
			}
			chunks = append(chunks, models.Chunk{
				Content:      content,
				CourseTitle:  course.Title,
				LessonNumber: body.number,
				ChunkIndex:   len(chunks),
			})
		}
	}
	return course, chunks
}

// contextHeader keeps course identity retrievable even when a search runs
// without a course filter.
func contextHeader(title string, lesson *int) string {
	if lesson != nil {
		return fmt.Sprintf("Course %s Lesson %d content: ", title, *lesson)
	}
	return fmt.Sprintf("Course %s content: ", title)
}

func (c *Chunker) parse(documentText, fallbackTitle string) (models.Course, []lessonBody) {
	lines := strings.Split(documentText, "\n")

	var course models.Course
	i := 0
	// Header block: title/instructor/link lines in any order before content.
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if m := courseTitleRe.FindStringSubmatch(line); m != nil {
			course.Title = strings.TrimSpace(m[1])
			continue
		}
		if m := courseInstructorRe.FindStringSubmatch(line); m != nil {
			course.Instructor = strings.TrimSpace(m[1])
			continue
		}
		if m := courseLinkRe.FindStringSubmatch(line); m != nil {
			course.CourseLink = strings.TrimSpace(m[1])
			continue
		}
		break
	}

	if course.Title == "" {
		log.Warn().Str("fallback_title", fallbackTitle).
			Msg("document missing course header, treating whole file as one lesson")
		course.Title = fallbackTitle
		return course, []lessonBody{{number: nil, text: documentText}}
	}

	var bodies []lessonBody
	var current *lessonBody
	var sb strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.text = sb.String()
		if strings.TrimSpace(current.text) != "" {
			bodies = append(bodies, *current)
		}
		sb.Reset()
		current = nil
	}

	for ; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if m := lessonMarkerRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			num, _ := strconv.Atoi(m[1])
			course.Lessons = append(course.Lessons, models.Lesson{
				Number: num,
				Title:  strings.TrimSpace(m[2]),
			})
			n := num
			current = &lessonBody{number: &n}
			continue
		}
		if m := lessonLinkRe.FindStringSubmatch(trimmed); m != nil {
			if n := len(course.Lessons); n > 0 && current != nil && sb.Len() == 0 {
				course.Lessons[n-1].Link = strings.TrimSpace(m[1])
				continue
			}
		}
		if current == nil {
			if trimmed == "" {
				continue
			}
			// preamble text between header and first lesson marker
			current = &lessonBody{number: nil}
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	flush()

	return course, bodies
}

// windows splits text into sentence-aligned chunks of at most maxChars with
// trailing-sentence overlap bounded by overlapChars. A lone sentence longer
// than maxChars is emitted as its own oversized chunk.
func (c *Chunker) windows(body string) []string {
	sentences := splitSentences(body)
	if len(sentences) == 0 {
		return nil
	}

	var out []string
	i := 0
	for i < len(sentences) {
		size := 0
		end := i
		for end < len(sentences) {
			add := len(sentences[end])
			if size > 0 {
				add++
			}
			if size+add > c.maxChars && end > i {
				break
			}
			size += add
			end++
		}
		out = append(out, strings.Join(sentences[i:end], " "))
		if end >= len(sentences) {
			break
		}

		// Back up over whole trailing sentences that fit the overlap
		// budget; always make forward progress.
		next := end
		if c.overlapChars > 0 {
			overlap := 0
			for k := end - 1; k > i; k-- {
				cost := len(sentences[k]) + 1
				if overlap+cost > c.overlapChars {
					break
				}
				overlap += cost
				next = k
			}
		}
		i = next
	}
	return out
}

var sentenceEndRe = regexp.MustCompile(`[.!?]+['")\]]*(\s+|$)`)

// splitSentences cuts text after terminal punctuation. Text without any
// terminator is returned whole.
func splitSentences(text string) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(normalized, -1) {
		s := strings.TrimSpace(normalized[start:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(normalized[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
