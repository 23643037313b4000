// Package alerts implements alert sinks. The file sink appends alerts as
// JSON lines to a local file, suppresses duplicates within a configurable
// window, and rotates the file to a zstd-compressed archive once it grows
// past a size limit.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"climarisk/internal/types"
)

// DefaultRotateBytes is the rotation threshold used when none is configured.
const DefaultRotateBytes = 10 << 20

// FileSink appends alerts to a JSON-lines file. It is safe for concurrent
// use; all writes are serialized behind a mutex.
type FileSink struct {
	mu          sync.Mutex
	path        string
	rotateBytes int64
	dedupWindow time.Duration
	clock       types.Clock
	logger      *slog.Logger

	// seen maps a candidate dedup key to the time the alert was last
	// written. Entries older than the dedup window are pruned on access.
	seen map[string]time.Time
}

// FileSinkConfig holds the dependencies for NewFileSink.
type FileSinkConfig struct {
	Path        string
	RotateBytes int64
	DedupWindow time.Duration
	Clock       types.Clock
	Logger      *slog.Logger
}

// NewFileSink creates a FileSink writing to cfg.Path. It loads recent
// alerts from an existing file so deduplication survives restarts.
func NewFileSink(cfg FileSinkConfig) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidConfig, "alert sink path is required", nil)
	}
	if cfg.RotateBytes <= 0 {
		cfg.RotateBytes = DefaultRotateBytes
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &FileSink{
		path:        cfg.Path,
		rotateBytes: cfg.RotateBytes,
		dedupWindow: cfg.DedupWindow,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		seen:        make(map[string]time.Time),
	}
	if err := s.loadSeen(); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordAlert appends one alert to the file and returns the stored record.
// Returns (nil, nil) when the candidate duplicates an alert written within
// the dedup window.
func (s *FileSink) RecordAlert(ctx context.Context, candidate types.AlertCandidate, message string) (*types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	key := dedupKey(candidate)

	if s.dedupWindow > 0 {
		if last, ok := s.seen[key]; ok && now.Sub(last) < s.dedupWindow {
			s.logger.InfoContext(ctx, "suppressing duplicate alert",
				"kind", candidate.Kind,
				"severity", candidate.Severity,
				"last_written", last)
			return nil, nil
		}
	}

	if err := s.rotateIfNeeded(ctx); err != nil {
		return nil, err
	}

	alert := &types.Alert{
		ID:        uuid.NewString(),
		Kind:      candidate.Kind,
		Severity:  candidate.Severity,
		Regions:   candidate.Regions,
		Message:   message,
		CreatedAt: now,
	}

	line, err := json.Marshal(alert)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode alert", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to open alert file", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to write alert", err)
	}

	s.seen[key] = now
	s.pruneSeen(now)
	return alert, nil
}

// dedupKey builds a stable identity for a candidate. Region order does not
// matter: two candidates naming the same regions collapse to one key.
func dedupKey(candidate types.AlertCandidate) string {
	regions := make([]string, len(candidate.Regions))
	copy(regions, candidate.Regions)
	sort.Strings(regions)
	return fmt.Sprintf("%s|%s|%s", candidate.Kind, candidate.Severity, strings.Join(regions, ","))
}

func (s *FileSink) pruneSeen(now time.Time) {
	if s.dedupWindow <= 0 {
		return
	}
	for key, last := range s.seen {
		if now.Sub(last) >= s.dedupWindow {
			delete(s.seen, key)
		}
	}
}

// loadSeen replays an existing alert file into the dedup map so restarts do
// not re-emit alerts still inside the window. A missing file is fine.
func (s *FileSink) loadSeen() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return types.NewAppError(types.ErrCodeInternalStore, "failed to read alert file", err)
	}

	now := s.clock.Now()
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var alert types.Alert
		if err := json.Unmarshal([]byte(line), &alert); err != nil {
			// Tolerate a torn trailing line from a crashed writer.
			s.logger.Warn("skipping malformed alert line", "error", err)
			continue
		}
		if s.dedupWindow > 0 && now.Sub(alert.CreatedAt) >= s.dedupWindow {
			continue
		}
		key := dedupKey(types.AlertCandidate{Kind: alert.Kind, Regions: alert.Regions, Severity: alert.Severity})
		if last, ok := s.seen[key]; !ok || alert.CreatedAt.After(last) {
			s.seen[key] = alert.CreatedAt
		}
	}
	return nil
}

// rotateIfNeeded archives the current file to <path>.<timestamp>.zst when it
// has grown past the rotation threshold, then truncates it. Must be called
// with the mutex held.
func (s *FileSink) rotateIfNeeded(ctx context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return types.NewAppError(types.ErrCodeInternalStore, "failed to stat alert file", err)
	}
	if info.Size() < s.rotateBytes {
		return nil
	}

	archive := fmt.Sprintf("%s.%s.zst", s.path, s.clock.Now().UTC().Format("20060102T150405"))
	if err := compressFile(s.path, archive); err != nil {
		return err
	}
	if err := os.Truncate(s.path, 0); err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to truncate alert file", err)
	}

	s.logger.InfoContext(ctx, "rotated alert file",
		"archive", archive,
		"size_bytes", info.Size())
	return nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to open alert file for rotation", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to create alert archive", err)
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create zstd encoder", err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		return types.NewAppError(types.ErrCodeInternalStore, "failed to compress alert archive", err)
	}
	if err := enc.Close(); err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "failed to finalize alert archive", err)
	}
	return nil
}
