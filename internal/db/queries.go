package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/memclass/internal/errors"
)

// RecentProject is a project file that was opened or saved.
type RecentProject struct {
	Path     string `json:"path"`
	OpenedAt int64  `json:"opened_at"`
}

// RecentProcess is a process that was attached to.
type RecentProcess struct {
	Name       string `json:"name"`
	PID        int    `json:"pid"`
	AttachedAt int64  `json:"attached_at"`
}

// Bookmark is a named selection (class + base + chain) within a project.
// Base and Chain are stored as text so full uint64 addresses survive SQLite.
type Bookmark struct {
	ID        string `json:"id"`
	Project   string `json:"project"`
	NameRaw   string `json:"name"`
	NameNorm  string `json:"-"`
	ClassID   string `json:"class_id"`
	Base      string `json:"base"`
	Chain     string `json:"chain"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.MemclassError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// TouchRecentProject records path as opened at now and keeps only the limit
// most recent entries.
func TouchRecentProject(ctx context.Context, db *sql.DB, path string, now int64, limit int) error {
	query := `
		INSERT INTO recent_projects (path, opened_at) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET opened_at = excluded.opened_at
	`
	if _, err := db.ExecContext(ctx, query, path, now); err != nil {
		return errors.NewInternal(err)
	}
	return trim(ctx, db, "recent_projects", "path", "opened_at", limit)
}

// ListRecentProjects returns up to limit projects, most recent first.
func ListRecentProjects(ctx context.Context, db *sql.DB, limit int) ([]RecentProject, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT path, opened_at FROM recent_projects
		ORDER BY opened_at DESC, path ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []RecentProject{}
	for rows.Next() {
		var r RecentProject
		if err := rows.Scan(&r.Path, &r.OpenedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// RemoveRecentProject forgets path. Missing entries are not an error.
func RemoveRecentProject(ctx context.Context, db *sql.DB, path string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM recent_projects WHERE path = ?`, path); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// TouchRecentProcess records an attach. Processes are keyed by name since
// pids change between runs; the latest pid is kept.
func TouchRecentProcess(ctx context.Context, db *sql.DB, name string, pid int, now int64, limit int) error {
	query := `
		INSERT INTO recent_processes (name, pid, attached_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET pid = excluded.pid, attached_at = excluded.attached_at
	`
	if _, err := db.ExecContext(ctx, query, name, pid, now); err != nil {
		return errors.NewInternal(err)
	}
	return trim(ctx, db, "recent_processes", "name", "attached_at", limit)
}

// ListRecentProcesses returns up to limit processes, most recent first.
func ListRecentProcesses(ctx context.Context, db *sql.DB, limit int) ([]RecentProcess, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, pid, attached_at FROM recent_processes
		ORDER BY attached_at DESC, name ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []RecentProcess{}
	for rows.Next() {
		var r RecentProcess
		if err := rows.Scan(&r.Name, &r.PID, &r.AttachedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// trim deletes all but the newest limit rows of a recents table. Table and
// column names are constants supplied by this package.
func trim(ctx context.Context, db *sql.DB, table, key, ts string, limit int) error {
	if limit <= 0 {
		return nil
	}
	query := `DELETE FROM ` + table + ` WHERE ` + key + ` NOT IN (
		SELECT ` + key + ` FROM ` + table + ` ORDER BY ` + ts + ` DESC, ` + key + ` ASC LIMIT ?
	)`
	if _, err := db.ExecContext(ctx, query, limit); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// InsertBookmark stores a new bookmark.
func InsertBookmark(ctx context.Context, db *sql.DB, b *Bookmark) error {
	query := `
		INSERT INTO bookmarks (
			id, project, name_raw, name_norm, class_id, base, chain, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		b.ID, b.Project, b.NameRaw, b.NameNorm, b.ClassID, b.Base, b.Chain, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// UpdateBookmark overwrites the selection of an existing bookmark.
func UpdateBookmark(ctx context.Context, db *sql.DB, b *Bookmark) error {
	result, err := db.ExecContext(ctx, `
		UPDATE bookmarks SET class_id = ?, base = ?, chain = ?, updated_at = ?
		WHERE id = ?
	`, b.ClassID, b.Base, b.Chain, b.UpdatedAt, b.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("bookmark", b.ID)
	}
	return nil
}

// GetBookmarkByName retrieves a bookmark by project and normalized name.
func GetBookmarkByName(ctx context.Context, db *sql.DB, project, nameNorm string) (*Bookmark, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, project, name_raw, name_norm, class_id, base, chain, created_at, updated_at
		FROM bookmarks
		WHERE project = ? AND name_norm = ?
	`, project, nameNorm)
	b, err := scanBookmark(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("bookmark", nameNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return b, nil
}

// ListBookmarks returns the bookmarks of a project ordered by name.
func ListBookmarks(ctx context.Context, db *sql.DB, project string) ([]Bookmark, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, project, name_raw, name_norm, class_id, base, chain, created_at, updated_at
		FROM bookmarks
		WHERE project = ?
		ORDER BY name_norm ASC
	`, project)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteBookmark removes a bookmark by project and normalized name.
func DeleteBookmark(ctx context.Context, db *sql.DB, project, nameNorm string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookmarks WHERE project = ? AND name_norm = ?`, project, nameNorm)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("bookmark", nameNorm)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(s scanner) (*Bookmark, error) {
	var b Bookmark
	err := s.Scan(&b.ID, &b.Project, &b.NameRaw, &b.NameNorm, &b.ClassID, &b.Base, &b.Chain, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
