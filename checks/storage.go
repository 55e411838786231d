package checks

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// SQLite creates an in-memory database, writes rows and reads them back
func SQLite(ctx context.Context) (string, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY, title TEXT NOT NULL)`); err != nil {
		return "", fmt.Errorf("failed to create table: %w", err)
	}
	for _, title := range []string{"Sample Item 1", "Sample Item 2", "Sample Item 3"} {
		if _, err := db.ExecContext(ctx, `INSERT INTO items (title) VALUES (?)`, title); err != nil {
			return "", fmt.Errorf("failed to insert %q: %w", title, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return "", fmt.Errorf("failed to count rows: %w", err)
	}
	if count != 3 {
		return "", fmt.Errorf("expected 3 rows, got %d", count)
	}

	var version string
	if err := db.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to read version: %w", err)
	}
	return fmt.Sprintf("Inserted and read %d rows (sqlite %s)", count, version), nil
}

// FileSystem writes, reads and deletes a scratch file under dir
func FileSystem(dir string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		f, err := os.CreateTemp(dir, "libcheck-*.txt")
		if err != nil {
			return "", fmt.Errorf("failed to create file: %w", err)
		}
		path := f.Name()
		defer os.Remove(path)

		content := []byte("Hello from the file system check")
		if _, err := f.Write(content); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", path, err)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		got, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		if !bytes.Equal(got, content) {
			return "", fmt.Errorf("read back %d bytes that differ from the %d written", len(got), len(content))
		}
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to delete %s: %w", path, err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			return "", fmt.Errorf("%s still exists after delete", path)
		}
		return fmt.Sprintf("Wrote, read and deleted %d bytes", len(content)), nil
	}
}
