// Package spool persists synthesized bounce notices to a directory for
// the inbound delivery side to pick up. Each notice is stored as a body
// file plus a JSON metadata sidecar, both named by a fresh UUID.
package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jibmail/jib/internal/bounce"
)

// Spool is a file-backed local handoff point. It implements
// delivery.Sink.
type Spool struct {
	dir    string
	logger *slog.Logger
}

// noticeInfo is the metadata sidecar written next to each body file.
type noticeInfo struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Lines     int       `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
}

// New opens (creating if needed) a spool rooted at dir.
func New(dir string) (*Spool, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool: create directory: %w", err)
	}
	return &Spool{
		dir:    dir,
		logger: slog.Default().With("component", "spool"),
	}, nil
}

// DeliverNotice writes the notice body and its metadata sidecar.
func (s *Spool) DeliverNotice(ctx context.Context, notice *bounce.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := uuid.New().String()
	body := strings.Join(notice.Data, "\r\n") + "\r\n"
	if err := os.WriteFile(filepath.Join(s.dir, id), []byte(body), 0o644); err != nil {
		return fmt.Errorf("spool: write body: %w", err)
	}

	info := noticeInfo{
		ID:        id,
		From:      notice.ReversePath.String(),
		To:        notice.ForwardPath.String(),
		Lines:     len(notice.Data),
		CreatedAt: time.Now(),
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("spool: marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, id+".json"), meta, 0o644); err != nil {
		return fmt.Errorf("spool: write metadata: %w", err)
	}

	s.logger.Info("bounce spooled", "id", id, "to", info.To, "lines", info.Lines)
	return nil
}

// List returns the IDs of spooled notices, oldest first by file order.
func (s *Spool) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("spool: read directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, name)
	}
	return ids, nil
}
