// Package objectstore locates the newest uploaded video and makes it
// available as a local file.
package objectstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
)

// ErrNoObjects is returned when nothing matches the prefix.
var ErrNoObjects = errors.New("no video objects found")

// Object is a fetched video.
type Object struct {
	Key          string    `json:"key"`
	LocalPath    string    `json:"local_path"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
	// Temporary marks a download that Cleanup removes.
	Temporary bool `json:"-"`
}

// Cleanup deletes a temporary download. It is a no-op for files the fetcher
// does not own.
func (o Object) Cleanup() error {
	if !o.Temporary || o.LocalPath == "" {
		return nil
	}
	if err := os.Remove(o.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Fetcher resolves the newest video under a key prefix to a local file.
type Fetcher interface {
	FetchLatest(ctx context.Context, prefix string) (Object, error)
}

type listing struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// selectLatest returns the most recently modified listing, skipping folder
// placeholders. Ties go to the greater key so the choice is stable.
func selectLatest(items []listing) (listing, bool) {
	var (
		best  listing
		found bool
	)
	for _, it := range items {
		if it.Key == "" || strings.HasSuffix(it.Key, "/") {
			continue
		}
		if !found ||
			it.LastModified.After(best.LastModified) ||
			(it.LastModified.Equal(best.LastModified) && it.Key > best.Key) {
			best, found = it, true
		}
	}
	return best, found
}
