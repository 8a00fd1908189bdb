// Package chunkio persists chunk lists as JSON files so chunking and
// embedding can run as separate steps: chunk once, inspect or edit the
// file, embed and index later.
package chunkio

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
)

func WriteFile(path string, chunks []models.Chunk) error {
	if err := validate(chunks); err != nil {
		return err
	}

	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return ragerr.Wrap(ragerr.KindValidation, "chunkio.write", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ragerr.Wrap(ragerr.KindRetrieval, "chunkio.write", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "chunkio.write", err)
	}
	return nil
}

func ReadFile(path string) ([]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ragerr.NotFoundf("chunkio.read", "chunk file %s does not exist", path)
	}
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindRetrieval, "chunkio.read", err)
	}

	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, ragerr.Validationf("chunkio.read", "invalid chunk file %s: %v", path, err)
	}
	if err := validate(chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func validate(chunks []models.Chunk) error {
	for i, chunk := range chunks {
		if chunk.Text == "" {
			return ragerr.Validationf("chunkio", "chunk %d has empty text", i)
		}
	}
	return nil
}
