// Package loader reads local documents into model types. Plain text,
// Markdown and HTML are supported; Markdown headings become sections so
// chunkers can carry a section header into chunk metadata.
package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
)

// Load reads one document from disk, dispatching on file extension.
func Load(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ragerr.NotFoundf("loader", "document %s does not exist", path)
	}
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindRetrieval, "loader", err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return parseText(path, content), nil
	case ".md", ".markdown":
		return parseMarkdown(path, content), nil
	case ".html", ".htm":
		return parseHTML(path, content)
	default:
		return nil, ragerr.Validationf("loader", "unsupported document type %q", filepath.Ext(path))
	}
}

// LoadGlob loads every document matching the given glob patterns, in
// sorted path order with duplicates removed.
func LoadGlob(patterns []string) ([]models.Document, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, ragerr.Validationf("loader", "invalid glob pattern %q: %v", pattern, err)
		}
		for _, match := range matches {
			if info, err := os.Stat(match); err != nil || info.IsDir() {
				continue
			}
			if !seen[match] {
				seen[match] = true
				paths = append(paths, match)
			}
		}
	}
	if len(paths) == 0 {
		return nil, ragerr.NotFoundf("loader", "no documents match %v", patterns)
	}
	sort.Strings(paths)

	documents := make([]models.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := Load(path)
		if err != nil {
			return nil, err
		}
		documents = append(documents, *doc)
	}
	return documents, nil
}

func parseText(path, content string) *models.Document {
	content = strings.TrimSpace(content)
	return &models.Document{
		Title:    filenameTitle(path),
		Path:     path,
		Content:  content,
		Sections: []models.Section{{Content: content}},
	}
}

// parseMarkdown splits on ATX headings. The first level-1 heading names
// the document; text before the first heading becomes an untitled
// section.
func parseMarkdown(path, content string) *models.Document {
	doc := &models.Document{
		Title:   filenameTitle(path),
		Path:    path,
		Content: strings.TrimSpace(content),
	}

	titled := false
	current := models.Section{}
	flush := func() {
		current.Content = strings.TrimSpace(current.Content)
		if current.Content != "" || current.Header != "" {
			doc.Sections = append(doc.Sections, current)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		level, heading := parseHeading(line)
		if level == 0 {
			current.Content += line + "\n"
			continue
		}
		if level == 1 && !titled {
			doc.Title = heading
			titled = true
		}
		flush()
		current = models.Section{Header: heading}
	}
	flush()

	if len(doc.Sections) == 0 {
		doc.Sections = []models.Section{{Content: doc.Content}}
	}
	return doc
}

func parseHTML(path, content string) (*models.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindRetrieval, "loader", err)
	}

	doc.Find("script, style, nav, header, footer").Remove()

	title := strings.TrimSpace(doc.Find("title").Text())
	if title == "" {
		title = filenameTitle(path)
	}

	// Prefer a main content area, fall back to the whole body
	var text string
	for _, selector := range []string{"main", "article", "#content", ".content"} {
		if selected := doc.Find(selector); selected.Length() > 0 {
			text = selected.Text()
			break
		}
	}
	if text == "" {
		text = doc.Find("body").Text()
	}
	text = cleanText(text)

	return &models.Document{
		Title:    title,
		Path:     path,
		Content:  text,
		Sections: []models.Section{{Content: text}},
	}, nil
}

func parseHeading(line string) (level int, text string) {
	trimmed := strings.TrimSpace(line)
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(trimmed) || trimmed[level] != ' ' {
		return 0, ""
	}
	return level, strings.TrimSpace(trimmed[level:])
}

// cleanText collapses runs of whitespace, keeping line structure so the
// fixed-size chunker can still snap to newlines.
func cleanText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func filenameTitle(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	return strings.TrimSpace(base)
}
