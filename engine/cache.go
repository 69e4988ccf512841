package engine

import (
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"school-planner/domain"
)

// Cache is the offline copy of the document. All operations are best-effort:
// implementations never let an error escape past their own boundary, because
// the cache is a durability hint, not a source of truth.
type Cache interface {
	// Save stores the document and marks the cache as holding state that has
	// not been confirmed against the remote store.
	Save(doc domain.Document)
	// Load returns the cached document, or nil when there is none.
	Load() *domain.Document
	// Clear drops the unconfirmed marker once a remote load made the remote
	// copy authoritative. The cached document itself is kept.
	Clear()
}

const (
	cacheFileName  = "document.json"
	markerFileName = "offline"
)

// FileCache keeps the offline document in a directory on disk.
type FileCache struct {
	docPath    string
	markerPath string
	logger     *log.Logger
}

// NewFileCache creates the directory if needed and returns a cache over it.
func NewFileCache(dir string, logger *log.Logger) *FileCache {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.WithError(err).Warn("offline cache directory unavailable")
	}
	return &FileCache{
		docPath:    filepath.Join(dir, cacheFileName),
		markerPath: filepath.Join(dir, markerFileName),
		logger:     logger,
	}
}

func (c *FileCache) Save(doc domain.Document) {
	data, err := sonic.Marshal(doc)
	if err != nil {
		c.logger.WithError(err).Debug("offline cache marshal failed")
		return
	}
	tmp := c.docPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.logger.WithError(err).Debug("offline cache write failed")
		return
	}
	if err := os.Rename(tmp, c.docPath); err != nil {
		c.logger.WithError(err).Debug("offline cache rename failed")
		return
	}
	if err := os.WriteFile(c.markerPath, []byte("1"), 0o644); err != nil {
		c.logger.WithError(err).Debug("offline cache marker write failed")
	}
}

func (c *FileCache) Load() *domain.Document {
	data, err := os.ReadFile(c.docPath)
	if err != nil {
		return nil
	}
	doc, err := domain.ParseDocument(data)
	if err != nil {
		c.logger.WithError(err).Debug("offline cache unreadable, ignoring it")
		return nil
	}
	return &doc
}

func (c *FileCache) Clear() {
	if err := os.Remove(c.markerPath); err != nil && !os.IsNotExist(err) {
		c.logger.WithError(err).Debug("offline cache marker remove failed")
	}
}
