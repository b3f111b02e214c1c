package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	ingest "github.com/goliatone/go-hr-ingest"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if len(targets) == 0 {
			return
		}
		if next := dedupe(targets); len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		if len(filesystems) == 0 {
			return
		}
		copied := make([]FilesystemSpec, 0, len(filesystems))
		for _, fsys := range filesystems {
			dialect := normalizeDialect(fsys.Dialect)
			if dialect == "" || fsys.FS == nil {
				continue
			}
			copied = append(copied, FilesystemSpec{
				Dialect: dialect,
				Path:    fsys.Path,
				FS:      fsys.FS,
			})
		}
		if len(copied) == 0 {
			return
		}
		r.Filesystems = copied
	}
}

func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := ingest.GetCoreMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	base, basePath, err := migrationsRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	filesystems := []FilesystemSpec{
		{
			Dialect: DialectPostgres,
			Path:    basePath,
			FS:      base,
		},
		{
			Dialect: DialectSQLite,
			Path:    pathJoin(basePath, "sqlite"),
			FS:      sqliteFS,
		},
	}

	if err := checkVersions(filesystems); err != nil {
		return nil, err
	}

	return filesystems, nil
}

// ForDialect returns the migration filesystem for one dialect.
func ForDialect(dialect string, sources ...fs.FS) (fs.FS, error) {
	filesystems, err := Filesystems(sources...)
	if err != nil {
		return nil, err
	}
	target := normalizeDialect(dialect)
	for _, fsys := range filesystems {
		if fsys.Dialect == target {
			return fsys.FS, nil
		}
	}
	return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "go-hr-ingest",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&reg)
	}

	if len(reg.ValidationTargets) == 0 {
		return reg, fmt.Errorf("migrations: validation targets are required")
	}
	if strings.TrimSpace(reg.SourceLabel) == "" {
		return reg, fmt.Errorf("migrations: source label is required")
	}
	if len(reg.Filesystems) == 0 {
		return reg, fmt.Errorf("migrations: filesystems are required")
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	targets := dedupe(reg.ValidationTargets)
	for _, fsys := range reg.Filesystems {
		if !slices.Contains(targets, fsys.Dialect) {
			continue
		}
		if fsys.FS == nil {
			return reg, fmt.Errorf("migrations: filesystem for %s is nil", fsys.Dialect)
		}
		if err := registerFn(ctx, fsys.Dialect, reg.SourceLabel, fsys.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", fsys.Dialect, fsys.Path, err)
		}
	}

	return reg, nil
}

func migrationsRoot(root fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(root, "data/sql/migrations")
	if err == nil {
		return sub, "data/sql/migrations", nil
	}

	entries, readErr := fs.ReadDir(root, ".")
	if readErr == nil {
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
				return root, ".", nil
			}
		}
	}

	return nil, "", fmt.Errorf("migrations: data/sql/migrations not found: %w", err)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		dialect := normalizeDialect(value)
		if dialect == "" {
			continue
		}
		if _, exists := seen[dialect]; exists {
			continue
		}
		seen[dialect] = struct{}{}
		out = append(out, dialect)
	}
	return out
}

// normalizeDialect lowercases dialect names and folds driver aliases.
func normalizeDialect(dialect string) string {
	switch value := strings.TrimSpace(strings.ToLower(dialect)); value {
	case "sqlite3":
		return DialectSQLite
	case "pg", "postgresql":
		return DialectPostgres
	default:
		return value
	}
}

// checkVersions requires an up/down pair for every version and the same
// version set in every dialect.
func checkVersions(filesystems []FilesystemSpec) error {
	var reference []string
	var referenceDialect string
	for _, fsys := range filesystems {
		versions, err := migrationVersions(fsys)
		if err != nil {
			return err
		}
		if reference == nil {
			reference, referenceDialect = versions, fsys.Dialect
			continue
		}
		if !slices.Equal(reference, versions) {
			return fmt.Errorf("migrations: %s versions %v differ from %s versions %v",
				fsys.Dialect, versions, referenceDialect, reference)
		}
	}
	return nil
}

func migrationVersions(fsys FilesystemSpec) ([]string, error) {
	ups, err := fs.Glob(fsys.FS, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s %s: %w", fsys.Dialect, fsys.Path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", fsys.Dialect, fsys.Path)
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if _, statErr := fs.Stat(fsys.FS, name+".down.sql"); statErr != nil {
			return nil, fmt.Errorf("migrations: %s %s has no down migration", fsys.Dialect, up)
		}
		version, _, _ := strings.Cut(name, "_")
		versions = append(versions, version)
	}
	slices.Sort(versions)
	return versions, nil
}

func pathJoin(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
