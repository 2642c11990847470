// Package extract turns uploaded file bodies into plain text that can be
// stored with the upload and quoted into a chat turn.
package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ErrUnsupported is returned for binary content with no known text extractor.
var ErrUnsupported = errors.New("unsupported file format")

// ErrNoText is returned when a document parses but yields no text.
var ErrNoText = errors.New("no text extracted")

// ErrTooLarge is returned when an archive decompresses past MaxExtractedBytes.
var ErrTooLarge = errors.New("extracted content too large")

// MaxExtractedBytes caps the decompressed size read from an archive upload.
const MaxExtractedBytes = 10 << 20

// Text extracts plain text from data, choosing the parser by file extension.
func Text(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return pdfText(data)
	case ".html", ".htm", ".xhtml":
		return htmlText(data)
	case ".epub":
		return epubText(data)
	default:
		return plainText(data)
	}
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) && bytes.IndexByte(data, 0) >= 0 {
		return "", ErrUnsupported
	}
	text := strings.ReplaceAll(string(data), "\x00", "")
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text), nil
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		if text = normalizeText(text); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", ErrNoText
	}
	return strings.Join(pages, "\n\n"), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return normalizeText(walkText(doc)), nil
}

func epubText(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open epub: %w", err)
	}
	var sections []string
	remaining := int64(MaxExtractedBytes)
	for _, file := range reader.File {
		name := strings.ToLower(file.Name)
		if !(strings.HasSuffix(name, ".xhtml") || strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("read epub file: %w", err)
		}
		body, err := io.ReadAll(io.LimitReader(rc, remaining+1))
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read epub content: %w", err)
		}
		if int64(len(body)) > remaining {
			return "", ErrTooLarge
		}
		remaining -= int64(len(body))
		text, err := htmlText(body)
		if err != nil {
			return "", err
		}
		if text != "" {
			sections = append(sections, text)
		}
	}
	if len(sections) == 0 {
		return "", ErrNoText
	}
	return strings.Join(sections, "\n\n"), nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	return strings.Join(strings.Fields(text), " ")
}

func walkText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" || node.Data == "head" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return buf.String()
}
