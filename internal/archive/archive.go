// Package archive exports the provenance store to an object sink.
//
// Every delta becomes one N-Triples object keyed
// "<engine>/<seq>-w<window>.nt" and a manifest.json lists what was
// written. Sinks are a local directory (FSSink) or an S3-compatible bucket
// (S3Sink); ParseTarget chooses between them from a CLI target string.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/store"
)

// Content types of archived objects.
const (
	ContentTypeNTriples = "application/n-triples"
	ContentTypeJSON     = "application/json"
)

// ManifestKey is the key of the export manifest, relative to the sink.
const ManifestKey = "manifest.json"

// Sink stores archived objects by slash-separated key.
type Sink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Entry describes one archived delta.
type Entry struct {
	Key    string `json:"key"`
	ID     string `json:"id"`
	Seq    int64  `json:"seq"`
	Engine string `json:"engine"`
	Window int64  `json:"window"`
	Facts  int    `json:"facts"`
}

// Manifest is the index written after all deltas.
type Manifest struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	StoreSize  int       `json:"store_size"`
	Deltas     []Entry   `json:"deltas"`
}

// DeltaKey returns the object key of a delta.
func DeltaKey(d store.Delta) string {
	return fmt.Sprintf("%s/%08d-w%d.nt", d.Engine, d.Seq, d.Window)
}

// Export writes every delta of engine (all engines when empty) and then the
// manifest. Deltas are written in append order; the first failing Put stops
// the export.
func Export(ctx context.Context, r store.Reader, engine string, sink Sink, now time.Time) (Manifest, error) {
	deltas, err := r.Deltas(ctx, engine)
	if err != nil {
		return Manifest{}, ir.InternalError("list deltas for export", err)
	}
	size, err := r.Size(ctx)
	if err != nil {
		return Manifest{}, ir.InternalError("read store size for export", err)
	}

	m := Manifest{
		Version:    ir.EngineVersion,
		ExportedAt: now.UTC(),
		StoreSize:  size,
		Deltas:     make([]Entry, 0, len(deltas)),
	}
	for _, d := range deltas {
		key := DeltaKey(d)
		if err := sink.Put(ctx, key, []byte(d.Facts.NTriples()), ContentTypeNTriples); err != nil {
			return m, fmt.Errorf("archive delta %d: %w", d.Seq, err)
		}
		m.Deltas = append(m.Deltas, Entry{
			Key:    key,
			ID:     d.ID,
			Seq:    d.Seq,
			Engine: d.Engine,
			Window: d.Window,
			Facts:  d.Facts.Len(),
		})
	}

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, ir.InternalError("marshal manifest", err)
	}
	if err := sink.Put(ctx, ManifestKey, append(body, '\n'), ContentTypeJSON); err != nil {
		return m, fmt.Errorf("archive manifest: %w", err)
	}
	slog.Info("provenance exported", "deltas", len(m.Deltas), "store_size", size)
	return m, nil
}

// FSSink writes objects below a local directory.
type FSSink struct {
	dir string
}

// NewFSSink creates a sink rooted at dir. The directory is created on
// first write.
func NewFSSink(dir string) *FSSink {
	return &FSSink{dir: dir}
}

// Dir returns the root directory.
func (s *FSSink) Dir() string { return s.dir }

// Put writes body to dir/key, creating parent directories.
func (s *FSSink) Put(_ context.Context, key string, body []byte, _ string) error {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return ir.InputError(fmt.Sprintf("archive key %q escapes the archive directory", key), nil)
	}
	path := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ir.FileIOError(fmt.Sprintf("create archive directory for %s", key), err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return ir.FileIOError(fmt.Sprintf("write archive object %s", key), err)
	}
	return nil
}

// ParseTarget returns the sink for target: "s3://bucket[/prefix]" selects
// an S3Sink configured from base, anything else is a directory.
func ParseTarget(ctx context.Context, target string, base S3Config) (Sink, error) {
	if target == "" {
		return nil, ir.ConfigurationError("archive target is empty", nil)
	}
	rest, ok := strings.CutPrefix(target, "s3://")
	if !ok {
		return NewFSSink(target), nil
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, ir.ConfigurationError(fmt.Sprintf("archive target %q has no bucket", target), nil)
	}
	base.Bucket = bucket
	base.Prefix = prefix
	return NewS3Sink(ctx, base)
}
