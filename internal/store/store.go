// Package store is the Package Index Store: a SQLite-backed record of every
// package scraped, the files each of its wheels contains, which of those
// files are namespace-package stubs, and the minimal nested prefixes each
// package provides.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite"
)

// WheelRecord is the package-level metadata recorded for one scraped wheel.
type WheelRecord struct {
	PackageName    string
	PackageVersion string
	PackagePos     int
	URL            string
}

// PackageURL identifies one package's wheel by the pair a duplicate
// __init__.py lookup groups its filepaths by.
type PackageURL struct {
	PackageName string
	URL         string
}

// Store is a handle on the package index database. The zero value is not
// usable; construct with Open.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists.
func Open(ctx context.Context, path string) (s *Store, err error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		err = fmt.Errorf("store: opening %s: %w", path, err)
		return
	}

	s = &Store{db: db}
	if err = s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS packages (
			package_name TEXT PRIMARY KEY,
			package_version TEXT,
			package_pos INTEGER,
			url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS filepaths (
			package_name TEXT,
			filepath TEXT,
			PRIMARY KEY (package_name, filepath),
			FOREIGN KEY (package_name) REFERENCES packages (package_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_filepaths_filepath ON filepaths(filepath)`,
		`CREATE TABLE IF NOT EXISTS namespace_packages (
			package_name TEXT,
			filepath TEXT,
			is_namespace BOOLEAN,
			PRIMARY KEY (package_name, filepath),
			FOREIGN KEY (package_name) REFERENCES packages (package_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_namespace_packages_filepath ON namespace_packages(filepath)`,
		`CREATE TABLE IF NOT EXISTS package_prefixes (
			package_name TEXT,
			prefix TEXT,
			PRIMARY KEY (package_name, prefix),
			FOREIGN KEY (package_name) REFERENCES packages (package_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_package_prefixes_prefix ON package_prefixes(prefix)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create tables: %w", err)
		}
	}

	return nil
}

// relevantFilepaths keeps only files plausibly interesting to an import
// graph: .py/.so/.dylib/.pyd, excluding anything under a wheel's .data/
// payload directory.
func relevantFilepaths(filepaths []string) []string {
	out := make([]string, 0, len(filepaths))
	for _, fp := range filepaths {
		if strings.Contains(fp, ".data/") {
			continue
		}
		for _, suffix := range []string{".py", ".so", ".dylib", ".pyd"} {
			if strings.HasSuffix(fp, suffix) {
				out = append(out, fp)
				break
			}
		}
	}
	return out
}

// MissingPackages returns the subset of names not already present in the
// packages table, preserving the input order.
func (s *Store) MissingPackages(ctx context.Context, names []string) (missing []string, err error) {
	if len(names) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT package_name FROM packages WHERE package_name IN (?)", names)
	if err != nil {
		err = fmt.Errorf("store: MissingPackages: %w", err)
		return
	}
	query = s.db.Rebind(query)

	var existing []string
	if err = s.db.SelectContext(ctx, &existing, query, args...); err != nil {
		err = fmt.Errorf("store: MissingPackages: %w", err)
		return
	}

	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	for _, name := range names {
		if !present[name] {
			missing = append(missing, name)
		}
	}

	return
}

// InsertPackage records a scraped wheel and its filtered filepaths,
// replacing any prior record for the same package name.
func (s *Store) InsertPackage(ctx context.Context, rec WheelRecord, filepaths []string) (err error) {
	filepaths = relevantFilepaths(filepaths)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("store: InsertPackage(%s): %w", rec.PackageName, err)
		return
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO packages (package_name, package_version, package_pos, url)
		VALUES (?, ?, ?, ?)`,
		rec.PackageName, rec.PackageVersion, rec.PackagePos, rec.URL)
	if err != nil {
		err = fmt.Errorf("store: InsertPackage(%s): %w", rec.PackageName, err)
		return
	}

	for _, fp := range filepaths {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO filepaths (package_name, filepath) VALUES (?, ?)`,
			rec.PackageName, fp)
		if err != nil {
			err = fmt.Errorf("store: InsertPackage(%s): filepath %s: %w", rec.PackageName, fp, err)
			return
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("store: InsertPackage(%s): commit: %w", rec.PackageName, err)
	}

	return
}

// DuplicateDunderInits returns every __init__.py filepath that appears in
// more than one package's filepaths, a candidate for being an explicit
// namespace package stub rather than a real import-graph fork.
func (s *Store) DuplicateDunderInits(ctx context.Context) (filepaths []string, err error) {
	err = s.db.SelectContext(ctx, &filepaths, `
		SELECT filepath
		FROM filepaths
		GROUP BY filepath
		HAVING COUNT(filepath) > 1
		AND filepath LIKE '%/__init__.py'`)
	if err != nil {
		err = fmt.Errorf("store: DuplicateDunderInits: %w", err)
	}
	return
}

// MissingDupFilepathsByURL groups the given filepaths, restricted to ones
// not yet classified in namespace_packages, by the (package, url) that
// contains them -- the shape the namespace-classification stage consumes
// one wheel at a time.
func (s *Store) MissingDupFilepathsByURL(ctx context.Context, dupFilepaths []string) (grouped map[PackageURL][]string, err error) {
	grouped = make(map[PackageURL][]string)
	if len(dupFilepaths) == 0 {
		return
	}

	query, args, err := sqlx.In(`
		SELECT p.package_name, p.url, f.filepath
		FROM filepaths f
		JOIN packages p ON f.package_name = p.package_name
		WHERE f.filepath IN (?)
		AND f.filepath NOT IN (SELECT filepath FROM namespace_packages)`, dupFilepaths)
	if err != nil {
		err = fmt.Errorf("store: MissingDupFilepathsByURL: %w", err)
		return
	}
	query = s.db.Rebind(query)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		err = fmt.Errorf("store: MissingDupFilepathsByURL: %w", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var pkgName, url, filepath string
		if err = rows.Scan(&pkgName, &url, &filepath); err != nil {
			err = fmt.Errorf("store: MissingDupFilepathsByURL: scan: %w", err)
			return
		}
		key := PackageURL{PackageName: pkgName, URL: url}
		grouped[key] = append(grouped[key], filepath)
	}
	err = rows.Err()

	return
}

// CheckAndStoreNamespacePackage records whether filepath, within
// packageName's wheel, is an explicit namespace package.
func (s *Store) CheckAndStoreNamespacePackage(ctx context.Context, packageName, filepath string, isNamespace bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO namespace_packages (package_name, filepath, is_namespace)
		VALUES (?, ?, ?)`, packageName, filepath, isNamespace)
	if err != nil {
		return fmt.Errorf("store: CheckAndStoreNamespacePackage(%s, %s): %w", packageName, filepath, err)
	}
	return nil
}

// IterateFilepaths calls fn once per package in the packages table with
// every filepath of that package that either was never classified as a
// namespace package or was classified and found not to be one; a package
// with no such filepath is passed an empty list. All packages are read by
// a single query; batchSize does not limit or split it. It stops and
// returns fn's error if fn returns one.
func (s *Store) IterateFilepaths(ctx context.Context, batchSize int, fn func(packageName string, filepaths []string) error) (err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.package_name,
			COALESCE(GROUP_CONCAT(kept.filepath, '|'), '') AS filepaths
		FROM packages p
		LEFT JOIN (
			SELECT f.package_name, f.filepath
			FROM filepaths f
			LEFT JOIN namespace_packages np
				ON f.package_name = np.package_name AND f.filepath = np.filepath
			WHERE np.package_name IS NULL OR np.is_namespace = 0
		) kept ON kept.package_name = p.package_name
		GROUP BY p.package_name`)
	if err != nil {
		return fmt.Errorf("store: IterateFilepaths: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var packageName, joined string
		if err = rows.Scan(&packageName, &joined); err != nil {
			return fmt.Errorf("store: IterateFilepaths: scan: %w", err)
		}

		var filepaths []string
		if joined != "" {
			filepaths = strings.Split(joined, "|")
		}

		if err = fn(packageName, filepaths); err != nil {
			return err
		}
	}

	return rows.Err()
}

// InsertPackagePrefixes records the minimal nested common prefixes
// computed for a package, replacing any prior set for that package.
func (s *Store) InsertPackagePrefixes(ctx context.Context, packageName string, prefixes []string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("store: InsertPackagePrefixes(%s): %w", packageName, err)
		return
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM package_prefixes WHERE package_name = ?`, packageName)
	if err != nil {
		err = fmt.Errorf("store: InsertPackagePrefixes(%s): clearing prior prefixes: %w", packageName, err)
		return
	}

	for _, prefix := range prefixes {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO package_prefixes (package_name, prefix) VALUES (?, ?)`,
			packageName, prefix)
		if err != nil {
			err = fmt.Errorf("store: InsertPackagePrefixes(%s): prefix %s: %w", packageName, prefix, err)
			return
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("store: InsertPackagePrefixes(%s): commit: %w", packageName, err)
	}

	return
}

// PackageFiles returns every filepath recorded for packageName, used by
// the query CLI's "files" subcommand.
func (s *Store) PackageFiles(ctx context.Context, packageName string) (filepaths []string, err error) {
	err = s.db.SelectContext(ctx, &filepaths,
		`SELECT filepath FROM filepaths WHERE package_name = ? ORDER BY filepath`, packageName)
	if err != nil {
		err = fmt.Errorf("store: PackageFiles(%s): %w", packageName, err)
	}
	return
}

// PackagePrefixes returns every nested common prefix recorded for
// packageName, used by the query CLI's "prefixes" subcommand.
func (s *Store) PackagePrefixes(ctx context.Context, packageName string) (prefixes []string, err error) {
	err = s.db.SelectContext(ctx, &prefixes,
		`SELECT prefix FROM package_prefixes WHERE package_name = ? ORDER BY prefix`, packageName)
	if err != nil {
		err = fmt.Errorf("store: PackagePrefixes(%s): %w", packageName, err)
	}
	return
}
