// Package chunker splits source documents into retrievable chunks.
//
// Two strategies are provided behind the same contract: fixed-size
// character windows with overlap and sentence-boundary snapping, and
// semantic grouping driven by an injected text encoder. Both prefix
// chunk text with the document title and section header when present,
// since chunks are embedded standalone and need that context at
// retrieval time.
package chunker

import (
	"strconv"
	"strings"

	"github.com/inkpotlabs/ragcore/internal/models"
)

func contextPrefix(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	var b strings.Builder
	if title := metadata[models.MetaTitle]; title != "" {
		b.WriteString("Title: ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	if section := metadata[models.MetaSectionHeader]; section != "" {
		b.WriteString("Section: ")
		b.WriteString(section)
		b.WriteString("\n\n")
	}
	return b.String()
}

// chunkMetadata copies the caller's metadata and stamps the chunk index
// so the mapping survives flattening into the index.
func chunkMetadata(metadata map[string]string, index int) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	m := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		m[k] = v
	}
	m[models.MetaChunkIndex] = strconv.Itoa(index)
	return m
}
