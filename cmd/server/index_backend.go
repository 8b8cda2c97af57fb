package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"buildnblocks.io/internal/persistence/indexdb"
	"buildnblocks.io/internal/sim/world"
)

type runtimeIndex interface {
	world.AuditLogger
	Close() error
}

// openRuntimeIndex picks the audit read model from BNB_INDEX_BACKEND.
func openRuntimeIndex(worldDir, worldID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("BNB_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexPath(worldDir))
	case "remote":
		endpoint := strings.TrimSpace(os.Getenv("BNB_INDEX_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("BNB_INDEX_BACKEND=remote but BNB_INDEX_INGEST_URL is empty")
		}
		return indexdb.OpenRemote(indexdb.RemoteConfig{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("BNB_INDEX_TOKEN")),
			WorldID:       worldID,
			BatchSize:     envInt("BNB_INDEX_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("BNB_INDEX_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported BNB_INDEX_BACKEND: %s", backend)
	}
}

func indexPath(worldDir string) string {
	return filepath.Join(worldDir, "index", "audit.sqlite")
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
