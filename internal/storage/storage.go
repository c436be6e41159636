// Package storage provides persistence for build records and index artifacts.
package storage

import (
	"context"

	"github.com/exilemind/buildsearch/internal/models"
)

// BlobStore is the abstract key/blob store the index persists through. Keys are
// slash-separated paths; the on-disk format behind them is the store's concern.
type BlobStore interface {
	Write(key string, data []byte) error
	Read(key string) ([]byte, error)
	Exists(key string) bool
	List(prefix string) ([]string, error)
	Delete(key string) error
}

// BuildStore persists build records so callers can rebuild the index with the
// union corpus when an incremental add is refused.
type BuildStore interface {
	UpsertRecords(ctx context.Context, records []*models.BuildRecord) error
	GetRecord(ctx context.Context, hash string) (*models.BuildRecord, error)
	ListRecords(ctx context.Context, offset, limit int) ([]*models.BuildRecord, error)
	AllRecords(ctx context.Context) ([]*models.BuildRecord, error)
	DeleteRecord(ctx context.Context, hash string) error
	CountRecords(ctx context.Context) (int64, error)
	Close() error
}
