package export

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oukeidos/fictra/internal/model"
)

func strPtr(s string) *string { return &s }

func sampleDoc() Document {
	return FromSegments("Chapter 1", "en", []model.EditorSegment{
		{SourceText: "안녕.", TranslatedText: strPtr("Hello.")},
		{SourceText: "\"가!\"", Type: model.Dialogue, Speaker: strPtr("Minji"), TranslatedText: strPtr("\"Go & run!\"")},
		{SourceText: "미번역", TranslatedText: nil},
	})
}

func TestRenderText(t *testing.T) {
	data, err := Render(Text, sampleDoc())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := "# Chapter 1\nHello.\n\"Go & run!\"\n미번역"
	if string(data) != want {
		t.Fatalf("text = %q, want %q", data, want)
	}
}

func TestRenderDocx(t *testing.T) {
	data, err := Render(Docx, sampleDoc())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip package: %v", err)
	}
	var document string
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open document: %v", err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		document = string(b)
	}
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		if !names[name] {
			t.Errorf("missing part %s", name)
		}
	}
	if !strings.Contains(document, "Minji: &#34;Go &amp; run!&#34;") {
		t.Fatalf("dialogue line not written with speaker: %s", document)
	}
	if !strings.Contains(document, "<w:b/>") || !strings.Contains(document, "Chapter 1") {
		t.Fatalf("title paragraph missing: %s", document)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if _, err := Render("pdf", sampleDoc()); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	doc := sampleDoc()
	doc.Title = "Part 1/2"

	path, size, err := Write(dir, Text, doc, at)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "Part 1_2_en_20250304_050607.txt" {
		t.Fatalf("unexpected file name %q", filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != size {
		t.Fatalf("size = %d, reported %d", info.Size(), size)
	}
}
