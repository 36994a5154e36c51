// Package store is the key-value port behind durable client state. The read
// ledger only needs get/set/delete by key, so any backend that can hold a
// small blob per key will do.
package store

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	// Get returns ErrNotFound when the key has never been set.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
