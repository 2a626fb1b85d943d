// Package blob stores encoded cube files on the local filesystem or in an
// S3-compatible bucket.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/idhash"
	"exposure-cube-lab/internal/storage"
)

// Store is a flat key/value object store. Put replaces existing objects.
// Get returns storage.ErrNotFound for a missing key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns keys with the given prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Location addresses one object: a local path or s3://bucket/key.
type Location struct {
	Bucket string // empty for local files
	Key    string
	Dir    string // local directory, empty for S3
}

// ParseLocation splits a cube file reference into store and key.
func ParseLocation(ref string) (Location, error) {
	if ref == "" {
		return Location{}, fmt.Errorf("%w: empty cube location", storage.ErrInvalidInput)
	}
	if strings.HasPrefix(ref, "s3://") {
		u, err := url.Parse(ref)
		if err != nil {
			return Location{}, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("%w: want s3://<bucket>/<key>, got %q", storage.ErrInvalidInput, ref)
		}
		return Location{Bucket: u.Host, Key: key}, nil
	}
	dir, file := filepath.Split(ref)
	if file == "" {
		return Location{}, fmt.Errorf("%w: %q is a directory", storage.ErrInvalidInput, ref)
	}
	if dir == "" {
		dir = "."
	}
	return Location{Dir: dir, Key: file}, nil
}

// Open returns the store holding loc.
func Open(ctx context.Context, loc Location, s3cfg S3Config) (Store, error) {
	if loc.Bucket == "" {
		return NewFSStore(loc.Dir)
	}
	s3cfg.Bucket = loc.Bucket
	return NewS3Store(ctx, s3cfg)
}

// SaveCube encodes c under key and returns the payload fingerprint.
func SaveCube(ctx context.Context, s Store, key string, c cube.Cube) (string, error) {
	payload, err := cube.Marshal(c)
	if err != nil {
		return "", err
	}
	if err := s.Put(ctx, key, payload); err != nil {
		return "", fmt.Errorf("put cube %s: %w", key, err)
	}
	return idhash.CubeFingerprint(payload), nil
}

// LoadCube reads and decodes the cube stored under key, returning it with
// its payload fingerprint.
func LoadCube(ctx context.Context, s Store, key string) (cube.Cube, string, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("get cube %s: %w", key, err)
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("read cube %s: %w", key, err)
	}
	c, err := cube.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("decode cube %s: %w", key, err)
	}
	return c, idhash.CubeFingerprint(payload), nil
}
