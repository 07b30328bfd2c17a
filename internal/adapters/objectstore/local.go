package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalFetcher picks the newest file in a directory whose name starts with
// the prefix. Files are used in place.
type LocalFetcher struct {
	dir string
}

// NewLocalFetcher creates a fetcher over dir.
func NewLocalFetcher(dir string) *LocalFetcher {
	return &LocalFetcher{dir: dir}
}

func (f *LocalFetcher) FetchLatest(ctx context.Context, prefix string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return Object{}, fmt.Errorf("read %s: %w", f.dir, err)
	}

	items := make([]listing, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, listing{Key: e.Name(), LastModified: info.ModTime(), Size: info.Size()})
	}

	latest, ok := selectLatest(items)
	if !ok {
		return Object{}, fmt.Errorf("%w: %s/%s*", ErrNoObjects, f.dir, prefix)
	}
	return Object{
		Key:          latest.Key,
		LocalPath:    filepath.Join(f.dir, latest.Key),
		LastModified: latest.LastModified,
		Size:         latest.Size,
	}, nil
}
