// Package migrations creates and upgrades the cube, sensitivity and DIM
// schemas. Applied files are recorded with a checksum in schema_migrations
// on each backend, so a restart only runs what is new.
package migrations

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// PostgresFS embeds the cube and sensitivity schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the DIM analytics schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// ErrChecksumMismatch reports an applied migration whose embedded file has
// since been edited.
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

// Migration is one embedded SQL file.
type Migration struct {
	Name     string
	SQL      string
	Checksum string
}

// load reads the .sql files under dir in lexical order. Blank files are
// skipped.
func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		sum := sha256.Sum256(data)
		out = append(out, Migration{Name: name, SQL: string(data), Checksum: hex.EncodeToString(sum[:])})
	}
	return out, nil
}

// pending returns the migrations missing from applied, which maps file name
// to recorded checksum.
func pending(all []Migration, applied map[string]string) ([]Migration, error) {
	var out []Migration
	for _, m := range all {
		sum, ok := applied[m.Name]
		if !ok {
			out = append(out, m)
			continue
		}
		if sum != m.Checksum {
			return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, m.Name)
		}
	}
	return out, nil
}

func names(ms []Migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}
