package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FSStore keeps objects under root/objects/<key> and their metadata under
// root/meta/<key>.json. Good enough for single-node deployments and tests.
type FSStore struct {
	root string
	mu   sync.RWMutex
}

type fsMeta struct {
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
	ContentType  string    `json:"content_type"`
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) objectPath(key string) string {
	return filepath.Join(s.root, "objects", key)
}

func (s *FSStore) metaPath(key string) string {
	return filepath.Join(s.root, "meta", key+".json")
}

func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMeta(key)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(s.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return file, meta.info(key), nil
}

func (s *FSStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMeta(key)
	if err != nil {
		return nil, err
	}
	return meta.info(key), nil
}

func (s *FSStore) Put(ctx context.Context, key string, body io.Reader, size int64, opts *PutOptions) (*ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putInternal(key, body, opts)
}

func (s *FSStore) putInternal(key string, body io.Reader, opts *PutOptions) (*ObjectInfo, error) {
	objPath := s.objectPath(key)
	metaPath := s.metaPath(key)

	if err := os.MkdirAll(filepath.Dir(objPath), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0755); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	hash := sha256.New()
	if _, err := io.Copy(&buf, io.TeeReader(body, hash)); err != nil {
		return nil, err
	}

	if err := os.WriteFile(objPath, buf.Bytes(), 0644); err != nil {
		return nil, err
	}

	meta := fsMeta{
		Size:         int64(buf.Len()),
		ETag:         fmt.Sprintf("%x", hash.Sum(nil)[:16]),
		LastModified: time.Now(),
	}
	if opts != nil {
		meta.ContentType = opts.ContentType
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(metaPath, metaData, 0644); err != nil {
		return nil, err
	}
	return meta.info(key), nil
}

func (s *FSStore) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64, opts *PutOptions) (*ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readMeta(key); err == nil {
		return nil, ErrAlreadyExists
	} else if err != ErrNotFound {
		return nil, err
	}
	return s.putInternal(key, body, opts)
}

func (s *FSStore) PutIfMatch(ctx context.Context, key string, body io.Reader, size int64, etag string, opts *PutOptions) (*ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(key)
	if err != nil {
		return nil, err
	}
	if meta.ETag != etag {
		return nil, ErrPrecondition
	}
	return s.putInternal(key, body, opts)
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.objectPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.metaPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FSStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metaDir := filepath.Join(s.root, "meta")
	if _, err := os.Stat(metaDir); os.IsNotExist(err) {
		return &ListResult{}, nil
	}

	prefix := ""
	marker := ""
	maxKeys := 1000
	if opts != nil {
		prefix = opts.Prefix
		marker = opts.Marker
		if opts.MaxKeys > 0 {
			maxKeys = opts.MaxKeys
		}
	}

	var keys []string
	err := filepath.Walk(metaDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		rel, err := filepath.Rel(metaDir, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), ".json")
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		if marker != "" && key <= marker {
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	result := &ListResult{}
	for i, key := range keys {
		if i >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = keys[i-1]
			break
		}
		meta, err := s.readMeta(key)
		if err != nil {
			continue
		}
		result.Objects = append(result.Objects, *meta.info(key))
	}
	return result, nil
}

func (s *FSStore) readMeta(key string) (*fsMeta, error) {
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var meta fsMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (m *fsMeta) info(key string) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         m.Size,
		ETag:         m.ETag,
		LastModified: m.LastModified,
		ContentType:  m.ContentType,
	}
}
