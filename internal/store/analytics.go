package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"codebrew/internal/patch"
	"codebrew/internal/review"
)

// Entry is one row of the analytics log, written when a pull request is opened
type Entry struct {
	Date               time.Time `json:"date"`
	Repo               string    `json:"repo_name"`
	FilePath           string    `json:"file_path"`
	CommitMessage      string    `json:"commit_message"`
	Benefit            string    `json:"benefit"`
	LinesOptimized     int       `json:"lines_optimized"`
	UnusedLinesRemoved int       `json:"unused_lines_removed"`
	User               string    `json:"user,omitempty"`
}

// EntryFor builds the analytics entry of an applied suggestion
func EntryFor(s review.Suggestion, user string, now time.Time) Entry {
	optimized, removed := patch.Stats(s.OldCode, s.NewCode)
	return Entry{
		Date:               now.UTC(),
		Repo:               s.RepoName,
		FilePath:           s.FilePath,
		CommitMessage:      s.CommitMessage,
		Benefit:            s.Benefit.String(),
		LinesOptimized:     optimized,
		UnusedLinesRemoved: removed,
		User:               user,
	}
}

// Totals aggregates the whole log
type Totals struct {
	Entries            int `json:"entries"`
	Repos              int `json:"repos"`
	LinesOptimized     int `json:"lines_optimized"`
	UnusedLinesRemoved int `json:"unused_lines_removed"`
}

// Analytics is an append-only sqlite log
type Analytics struct {
	db *sql.DB
}

// OpenAnalytics opens (and migrates) the database at path
func OpenAnalytics(path string) (*Analytics, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Analytics{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS optimizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at DATETIME NOT NULL,
			repo TEXT NOT NULL,
			file_path TEXT NOT NULL,
			commit_message TEXT NOT NULL,
			benefit TEXT NOT NULL,
			lines_optimized INTEGER NOT NULL,
			unused_lines_removed INTEGER NOT NULL,
			user TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_optimizations_created_at ON optimizations(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate db: %w", err)
		}
	}
	return nil
}

// Close releases the database
func (a *Analytics) Close() error {
	return a.db.Close()
}

// Append records e
func (a *Analytics) Append(e Entry) error {
	_, err := a.db.Exec(`
		INSERT INTO optimizations (created_at, repo, file_path, commit_message, benefit, lines_optimized, unused_lines_removed, user)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Date.UTC(), e.Repo, e.FilePath, e.CommitMessage, e.Benefit, e.LinesOptimized, e.UnusedLinesRemoved, nullString(e.User))
	if err != nil {
		return fmt.Errorf("failed to append analytics entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (a *Analytics) Recent(limit int) ([]Entry, error) {
	rows, err := a.db.Query(`
		SELECT created_at, repo, file_path, commit_message, benefit, lines_optimized, unused_lines_removed, user
		FROM optimizations
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var user sql.NullString
		if err := rows.Scan(&e.Date, &e.Repo, &e.FilePath, &e.CommitMessage, &e.Benefit, &e.LinesOptimized, &e.UnusedLinesRemoved, &user); err != nil {
			return nil, fmt.Errorf("failed to scan analytics entry: %w", err)
		}
		e.User = user.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Totals sums the log
func (a *Analytics) Totals() (Totals, error) {
	var t Totals
	err := a.db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT repo), COALESCE(SUM(lines_optimized), 0), COALESCE(SUM(unused_lines_removed), 0)
		FROM optimizations
	`).Scan(&t.Entries, &t.Repos, &t.LinesOptimized, &t.UnusedLinesRemoved)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to sum analytics: %w", err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
