package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FilesystemStore implements Store on a local directory. Each blob is a data
// file plus a JSON metadata sidecar.
type FilesystemStore struct {
	root string
}

const metaSuffix = ".meta.json"

// NewFilesystemStore creates a store rooted at the provided directory,
// creating it when missing.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) Driver() Driver { return DriverFilesystem }

// keyPath maps a blob key to a path under the root, rejecting traversal.
func (s *FilesystemStore) keyPath(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *FilesystemStore) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(path); err == nil {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return Info{}, fmt.Errorf("create blob dirs: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return Info{}, fmt.Errorf("write blob: %w", err)
	}
	info := Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		Metadata:     cloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	if err := s.writeMeta(path, info); err != nil {
		_ = os.Remove(path)
		return Info{}, err
	}
	return info, nil
}

func (s *FilesystemStore) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	path, err := s.keyPath(key)
	if err != nil {
		return Info{}, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Info{}, nil, fmt.Errorf("open blob: %w", err)
	}
	return info, file, nil
}

func (s *FilesystemStore) Head(_ context.Context, key string) (Info, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return Info{}, fmt.Errorf("blob %s not found", key)
	}
	return s.readMeta(path, key)
}

func (s *FilesystemStore) Delete(_ context.Context, key string) (bool, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("remove blob: %w", err)
	}
	_ = os.Remove(path + metaSuffix)
	return true, nil
}

func (s *FilesystemStore) List(_ context.Context, prefix string) ([]Info, error) {
	var infos []Info
	err := filepath.Walk(s.root, func(path string, entry os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.readMeta(path, key)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *FilesystemStore) PresignURL(context.Context, string, SignedURLOptions) (string, error) {
	return "", ErrUnsupported
}

func (s *FilesystemStore) writeMeta(path string, info Info) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode blob meta: %w", err)
	}
	if err := os.WriteFile(path+metaSuffix, payload, 0o640); err != nil {
		return fmt.Errorf("write blob meta: %w", err)
	}
	return nil
}

func (s *FilesystemStore) readMeta(path, key string) (Info, error) {
	payload, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		// Sidecar missing; rebuild minimal info from the data file.
		stat, statErr := os.Stat(path)
		if statErr != nil {
			return Info{}, fmt.Errorf("blob %s not found", key)
		}
		return Info{Key: key, Size: stat.Size(), LastModified: stat.ModTime().UTC()}, nil
	}
	var info Info
	if err := json.Unmarshal(payload, &info); err != nil {
		return Info{}, fmt.Errorf("decode blob meta: %w", err)
	}
	info.Key = key
	return info, nil
}
