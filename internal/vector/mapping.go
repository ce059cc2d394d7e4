package vector

import (
	"encoding/json"
	"os"
	"path/filepath"

	"codewiki/internal/logging"
)

// LoadMapping reads the index schema from mappingDir/filename. A missing
// or unreadable file falls back to a minimal default: a text content field
// plus a dense vector sized to vectorSize (768 when zero).
func LoadMapping(mappingDir, filename string, vectorSize int) map[string]interface{} {
	if filename != "" {
		data, err := os.ReadFile(filepath.Join(mappingDir, filename))
		if err == nil {
			var m map[string]interface{}
			if json.Unmarshal(data, &m) == nil {
				return m
			}
			logging.VectorError("mapping file %s is not valid JSON, using default", filename)
		}
	}
	return defaultMapping(vectorSize)
}

func defaultMapping(vectorSize int) map[string]interface{} {
	if vectorSize <= 0 {
		vectorSize = 768
	}
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"content": map[string]interface{}{"type": "text"},
				"embedding": map[string]interface{}{
					"type": "dense_vector",
					"dims": vectorSize,
				},
			},
		},
	}
}
