package text

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"encoding/xml"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat is returned when the file type has no extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptDocument is returned when a supported file fails to parse.
	ErrCorruptDocument = errors.New("corrupt document")
)

// Extract converts a raw file into plain text, dispatching on the file
// extension first and the declared content type second. The output is
// normalized: control characters stripped, whitespace collapsed, line
// boundaries preserved.
func Extract(content []byte, filename, contentType string) (string, error) {
	kind := formatFor(filename, contentType)

	var raw string
	var err error
	switch kind {
	case ".pdf":
		raw, err = extractPDF(content)
	case ".docx":
		raw, err = extractDOCX(content)
	case ".txt", ".md":
		raw, err = extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, filepath.Ext(filename), contentType)
	}
	if err != nil {
		return "", err
	}

	return Normalize(raw), nil
}

func formatFor(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf", ".docx", ".txt", ".md":
		return ext
	}

	// MIME parameters like charset are irrelevant for dispatch
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	switch strings.TrimSpace(strings.ToLower(contentType)) {
	case "application/pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "text/plain":
		return ".txt"
	case "text/markdown":
		return ".md"
	}
	return ""
}

func extractPDF(content []byte) (text string, err error) {
	// The pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: pdf parser panic: %v", ErrCorruptDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrCorruptDocument, i, err)
		}
		if strings.TrimSpace(pageText) != "" {
			parts = append(parts, pageText)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// extractDOCX reads word/document.xml from the zip container and joins
// the text runs, one line per paragraph.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var doc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
			}
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: missing word/document.xml", ErrCorruptDocument)
	}
	defer doc.Close()

	decoder := xml.NewDecoder(doc)
	var sb strings.Builder
	var inText bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return sb.String(), nil
}

func extractPlain(content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	// Latin-1 fallback: every byte maps to the rune of the same value
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

// Normalize strips control characters, trims and collapses whitespace
// within lines, and drops empty lines while keeping line boundaries as
// soft split points for chunking.
func Normalize(text string) string {
	var cleaned strings.Builder
	cleaned.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			cleaned.WriteRune(r)
		}
	}

	var lines []string
	for _, line := range strings.Split(cleaned.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
