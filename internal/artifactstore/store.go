// Package artifactstore provides a uniform Put/Get/List surface over an
// object store, trying a remote backend first and silently falling back
// to local disk when the remote is unavailable or unconfigured.
package artifactstore

import (
	"context"
	"io"
)

// Backend is the minimal interface both the remote and local-disk
// implementations satisfy.
type Backend interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Store is the adapter the rest of the pipeline depends on. It tries
// remote first (if configured) and always falls back to local disk on
// any remote failure, matching the original pipeline's
// Supabase-with-local-fallback pattern.
type Store struct {
	remote Backend // nil when no remote is configured
	local  Backend
	onFallback func(key string, err error)
}

// New builds a Store. remote may be nil, in which case every operation
// goes straight to local.
func New(remote Backend, local Backend) *Store {
	return &Store{remote: remote, local: local}
}

// OnFallback registers a callback invoked whenever a remote operation
// fails and local disk is used instead (for logging/metrics).
func (s *Store) OnFallback(fn func(key string, err error)) {
	s.onFallback = fn
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if s.remote != nil {
		if err := s.remote.Put(ctx, key, data); err == nil {
			return nil
		} else if s.onFallback != nil {
			s.onFallback(key, err)
		}
	}
	return s.local.Put(ctx, key, data)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.remote != nil {
		if data, err := s.remote.Get(ctx, key); err == nil {
			return data, nil
		} else if s.onFallback != nil {
			s.onFallback(key, err)
		}
	}
	return s.local.Get(ctx, key)
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if s.remote != nil {
		if keys, err := s.remote.List(ctx, prefix); err == nil {
			return keys, nil
		} else if s.onFallback != nil {
			s.onFallback(prefix, err)
		}
	}
	return s.local.List(ctx, prefix)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if s.remote != nil {
		if ok, err := s.remote.Exists(ctx, key); err == nil {
			return ok, nil
		} else if s.onFallback != nil {
			s.onFallback(key, err)
		}
	}
	return s.local.Exists(ctx, key)
}

// Reader opens a streamed reader for large artifacts (blend files).
// Neither LocalDisk nor HTTPRemote implements it; Store reads whole
// artifacts through Get.
type Reader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
