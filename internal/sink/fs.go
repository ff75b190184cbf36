// Package sink persists enriched publications.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// FileSystemSink writes one JSON file per publication, grouped by gazette
// date. Saving the same process number twice overwrites the earlier file.
type FileSystemSink struct {
	root   string
	logger *zap.Logger
}

// NewFileSystemSink returns a sink rooted at dir.
func NewFileSystemSink(root string, logger *zap.Logger) (*FileSystemSink, error) {
	if root == "" {
		return nil, fmt.Errorf("sink root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemSink{root: root, logger: logger}, nil
}

// Save writes the publication to <root>/<publication date>/<process>.json.
func (s *FileSystemSink) Save(ctx context.Context, pub pipeline.EnrichedPublication) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if pub.ProcessNumber == "" {
		return fmt.Errorf("publication has no process number")
	}
	target := s.publicationPath(pub)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("creating publication dir for %s: %w", target, err)
	}
	payload, err := json.MarshalIndent(pub, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal publication: %w", err)
	}
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return fmt.Errorf("write publication %s: %w", target, err)
	}
	s.logger.Debug("publication saved",
		zap.String("process_number", pub.ProcessNumber),
		zap.String("path", target),
	)
	return nil
}

func (s *FileSystemSink) publicationPath(pub pipeline.EnrichedPublication) string {
	date := pub.PublicationDate
	if date == "" {
		date = "undated"
	}
	// Canonical process numbers contain no path separators, but the value
	// came from scraped text.
	name := strings.ReplaceAll(pub.ProcessNumber, string(os.PathSeparator), "_") + ".json"
	return filepath.Join(s.root, date, name)
}
