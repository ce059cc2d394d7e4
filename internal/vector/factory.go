package vector

import (
	"path/filepath"

	"codewiki/internal/config"
	"codewiki/internal/wikierr"
)

// NewStore builds the configured vector store backend. mappingDir is the
// directory holding index schema files (usually "mapping").
func NewStore(cfg config.VectorStoreConfig, embeddingDims int, mappingDir string) (Store, error) {
	switch cfg.Engine {
	case "elasticsearch":
		if len(cfg.ESHosts) == 0 {
			return nil, wikierr.New(wikierr.KindConfig, "elasticsearch engine selected but es_hosts is empty")
		}
		return NewESStore(cfg.ESHosts, cfg.ESUsername, cfg.ESPassword, mappingDir, cfg.Mapping, embeddingDims), nil
	case "opensearch":
		if len(cfg.OSHosts) == 0 {
			return nil, wikierr.New(wikierr.KindConfig, "opensearch engine selected but os_hosts is empty")
		}
		return NewOSStore(cfg.OSHosts, cfg.OSUsername, cfg.OSPassword, mappingDir, cfg.Mapping, embeddingDims), nil
	case "local", "":
		path := cfg.LocalPath
		if path == "" {
			path = filepath.Join(".codewiki", "vectors.db")
		}
		return NewLocalStore(path)
	}
	return nil, wikierr.New(wikierr.KindConfig, "unknown vector store engine %q", cfg.Engine)
}
