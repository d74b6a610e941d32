package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestSupported(t *testing.T) {
	for _, path := range []string{"a.txt", "b.MD", "c.pdf", "d.docx", "e.xlsx"} {
		if !Supported(path) {
			t.Errorf("%s should be supported", path)
		}
	}
	for _, path := range []string{"a.json", "b.html", "noext", ".env"} {
		if Supported(path) {
			t.Errorf("%s should not be supported", path)
		}
	}
}

func TestExtractTextUnsupported(t *testing.T) {
	if _, err := ExtractText("course.html"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestExtractPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course.txt")
	body := "Course Title: Sample\nLesson 0: Intro\nHello world.\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ExtractText(path)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != body {
		t.Fatalf("got %q, want %q", got, body)
	}
}

func TestExtractMarkdownKeepsLineMarkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course.md")
	body := "Course Title: Sample\nCourse Instructor: Jane\n\nLesson 0: Intro\n\nHello **bold** world.\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ExtractText(path)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	for _, want := range []string{"Course Title: Sample", "Course Instructor: Jane", "Lesson 0: Intro", "Hello"} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown extraction lost %q:\n%s", want, got)
		}
	}
	// Formatting syntax must be stripped, not carried into chunks.
	if strings.Contains(got, "**") {
		t.Errorf("markdown syntax leaked into text:\n%s", got)
	}
	// The header lines have to stay on separate lines for the parser.
	lines := strings.Split(got, "\n")
	found := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "Lesson 0: Intro" {
			found = true
		}
	}
	if !found {
		t.Errorf("lesson marker not on its own line:\n%s", got)
	}
}

func TestExtractXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "Course Title: Spreadsheet Course")
	_ = f.SetCellValue(sheet, "A2", "Lesson 0: Cells")
	_ = f.SetCellValue(sheet, "A3", "Rows become lines.")
	_ = f.SetCellValue(sheet, "B3", "Cells join with tabs.")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	_ = f.Close()

	got, err := ExtractText(path)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(got, "Course Title: Spreadsheet Course") {
		t.Errorf("missing title row:\n%s", got)
	}
	if !strings.Contains(got, "Rows become lines.\tCells join with tabs.") {
		t.Errorf("row cells not tab-joined:\n%s", got)
	}
}
