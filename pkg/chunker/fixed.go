package chunker

import (
	"context"
	"strings"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
)

// A window break point is only snapped to when it falls past this share
// of the chunk size, so boundary snapping never produces near-empty
// chunks.
const boundarySnapRatio = 0.7

type FixedSizeConfig struct {
	ChunkSize int // characters per chunk, default 1000
	Overlap   int // characters shared between adjacent chunks
}

// FixedSize splits text into overlapping character windows, snapping
// window ends to the last sentence-terminal period or newline when one
// falls late enough in the window.
type FixedSize struct {
	config FixedSizeConfig
}

func NewFixedSize(config FixedSizeConfig) (*FixedSize, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkSize < 1 {
		return nil, ragerr.Validationf("chunker", "chunk_size must be positive, got %d", config.ChunkSize)
	}
	if config.Overlap < 0 || config.Overlap >= config.ChunkSize {
		return nil, ragerr.Validationf("chunker", "overlap %d must be non-negative and less than chunk_size %d", config.Overlap, config.ChunkSize)
	}
	return &FixedSize{config: config}, nil
}

func (f *FixedSize) Chunk(_ context.Context, text string, metadata map[string]string) ([]models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prefix := contextPrefix(metadata)

	var chunks []models.Chunk
	start := 0
	index := 0
	for start < len(text) {
		rawEnd := start + f.config.ChunkSize
		end := rawEnd
		if end > len(text) {
			end = len(text)
		}

		if rawEnd < len(text) {
			window := text[start:end]
			lastPeriod := strings.LastIndexByte(window, '.')
			lastNewline := strings.LastIndexByte(window, '\n')
			breakPoint := lastPeriod
			if lastNewline > breakPoint {
				breakPoint = lastNewline
			}
			if float64(breakPoint) > float64(f.config.ChunkSize)*boundarySnapRatio {
				end = start + breakPoint + 1
				rawEnd = end
			}
		}

		chunkText := strings.TrimSpace(text[start:end])
		if chunkText != "" {
			chunks = append(chunks, models.Chunk{
				Text:       prefix + chunkText,
				ChunkIndex: index,
				StartChar:  start,
				EndChar:    end,
				Metadata:   chunkMetadata(metadata, index),
			})
			index++
		}

		// Advance with overlap. A snapped window can make the next start
		// regress when overlap is close to chunk_size; jump to the window
		// end instead so the walk always terminates.
		next := rawEnd - f.config.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}
