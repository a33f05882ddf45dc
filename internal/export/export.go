// Package export renders a translated chapter as plain text or as a Word
// document.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/oukeidos/fictra/internal/files"
	"github.com/oukeidos/fictra/internal/model"
)

type Format string

const (
	Text Format = "txt"
	Docx Format = "docx"
)

// Paragraph is one segment of the exported chapter.
type Paragraph struct {
	Text    string
	Type    model.SegmentType
	Speaker string
}

type Document struct {
	Title      string
	Language   string
	Paragraphs []Paragraph
}

// FromSegments builds a document from editor rows, using each segment's
// translation and falling back to its source text.
func FromSegments(title, lang string, segments []model.EditorSegment) Document {
	doc := Document{Title: title, Language: lang}
	for _, seg := range segments {
		p := Paragraph{Text: seg.SourceText, Type: seg.Type}
		if seg.TranslatedText != nil && *seg.TranslatedText != "" {
			p.Text = *seg.TranslatedText
		}
		if seg.Speaker != nil {
			p.Speaker = *seg.Speaker
		}
		doc.Paragraphs = append(doc.Paragraphs, p)
	}
	return doc
}

// Render returns the encoded document.
func Render(f Format, doc Document) ([]byte, error) {
	switch f {
	case Text:
		return []byte(renderText(doc)), nil
	case Docx:
		return renderDocx(doc)
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

func renderText(doc Document) string {
	lines := make([]string, len(doc.Paragraphs))
	for i, p := range doc.Paragraphs {
		lines[i] = p.Text
	}
	return "# " + doc.Title + "\n" + strings.Join(lines, "\n")
}

// FileName is "{title}_{lang}_{YYYYmmdd_HHMMSS}.{ext}" with the title made
// safe for any filesystem.
func FileName(title, lang string, at time.Time, f Format) string {
	return fmt.Sprintf("%s_%s_%s.%s", files.SafeFileName(title), lang, at.Format("20060102_150405"), f)
}

// Write renders doc and writes it into dir, returning the path and size.
func Write(dir string, f Format, doc Document, at time.Time) (string, int64, error) {
	data, err := Render(f, doc)
	if err != nil {
		return "", 0, err
	}
	path, err := files.WriteNew(dir, FileName(doc.Title, doc.Language, at, f), data)
	if err != nil {
		return "", 0, fmt.Errorf("writing export: %w", err)
	}
	return path, int64(len(data)), nil
}
