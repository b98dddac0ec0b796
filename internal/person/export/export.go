// Package export writes JSON snapshots of the people collection to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/storage"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/logger"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/metrics"
)

const (
	keyPrefix        = "people/"
	defaultURLExpiry = 15 * time.Minute
)

var (
	// ErrInvalidKey is returned by Open for keys outside the snapshot prefix.
	ErrInvalidKey = errors.New("invalid snapshot key")
	// ErrNotFound is returned by Open when no snapshot is stored under the key.
	ErrNotFound = errors.New("snapshot not found")
)

// Sink is the object store a snapshot is written to. storage.MinIOStorage satisfies it.
// DownloadFile reports a missing key with storage.ErrObjectNotFound.
type Sink interface {
	UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Lister supplies the people to export.
type Lister interface {
	List(ctx context.Context) ([]*person.Person, error)
}

// Result describes a written snapshot.
type Result struct {
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is the stored document.
type Snapshot struct {
	ExportedAt time.Time        `json:"exportedAt"`
	Count      int              `json:"count"`
	People     []*person.Person `json:"people"`
}

type Exporter struct {
	people    Lister
	sink      Sink
	urlExpiry time.Duration
	now       func() time.Time
}

func New(people Lister, sink Sink) *Exporter {
	return &Exporter{people: people, sink: sink, urlExpiry: defaultURLExpiry, now: time.Now}
}

// Export lists every person and uploads the snapshot. A presign failure is
// logged and leaves URL empty.
func (e *Exporter) Export(ctx context.Context) (*Result, error) {
	res, err := e.export(ctx)
	if err != nil {
		metrics.Exports.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.Exports.WithLabelValues("ok").Inc()
	return res, nil
}

func (e *Exporter) export(ctx context.Context) (*Result, error) {
	people, err := e.people.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	if people == nil {
		people = []*person.Person{}
	}
	now := e.now().UTC()
	body, err := json.Marshal(Snapshot{ExportedAt: now, Count: len(people), People: people})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	key := keyPrefix + "snapshot-" + now.Format("20060102T150405.000Z") + ".json"
	if err := e.sink.UploadFile(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}
	res := &Result{Key: key, Count: len(people), CreatedAt: now}
	if u, err := e.sink.GetPresignedURL(ctx, key, e.urlExpiry); err != nil {
		logger.Warnf("export: presign %s: %v", key, err)
	} else {
		res.URL = u
	}
	logger.Infof("export: wrote %d people to %s", res.Count, key)
	return res, nil
}

// Open reads back a stored snapshot.
func (e *Exporter) Open(ctx context.Context, key string) (*Snapshot, error) {
	if !strings.HasPrefix(key, keyPrefix) || strings.Contains(key, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	rc, err := e.sink.DownloadFile(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer rc.Close()
	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &snap, nil
}
