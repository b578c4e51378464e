package enrich

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// maxArchiveDepth bounds recursion into nested archives; result bundles are
// at most a zip of zips of PDFs in the wild.
const maxArchiveDepth = 3

// ExtractText pulls plain text out of a downloaded result document. Archives
// are walked recursively and each contained document's text concatenated.
func ExtractText(name string, b []byte) (string, error) {
	return extractText(name, b, 0)
}

func extractText(name string, b []byte, depth int) (string, error) {
	switch {
	case isZip(b):
		if depth >= maxArchiveDepth {
			return "", fmt.Errorf("extract: archive nesting exceeds %d in %s", maxArchiveDepth, name)
		}
		return extractZip(name, b, depth)
	case isPDF(b):
		return extractPDF(b)
	case looksLikeHTML(b):
		return extractHTML(b)
	default:
		return string(b), nil
	}
}

func isZip(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], []byte("PK\x03\x04"))
}

func isPDF(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], []byte("%PDF"))
}

func looksLikeHTML(b []byte) bool {
	head := strings.ToLower(string(b[:min(len(b), 256)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

func extractZip(name string, b []byte, depth int) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("extract: open archive %s: %w", name, err)
	}

	var sb strings.Builder
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue // one bad entry must not lose the rest
		}
		eb, err := io.ReadAll(io.LimitReader(rc, 20<<20))
		rc.Close()
		if err != nil {
			continue
		}
		txt, err := extractText(f.Name, eb, depth+1)
		if err != nil || txt == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(txt)
	}
	return sb.String(), nil
}

func extractPDF(b []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("extract: open pdf: %w", err)
	}
	tr, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract: pdf text: %w", err)
	}
	txt, err := io.ReadAll(tr)
	if err != nil {
		return "", fmt.Errorf("extract: read pdf text: %w", err)
	}
	return strings.TrimSpace(string(txt)), nil
}

func extractHTML(b []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("extract: parse html: %w", err)
	}
	doc.Find("script, style").Remove()
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " ")), nil
}
