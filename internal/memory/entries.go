package memory

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const entryColumns = `id, kind, title, content, project, source, topic_key,
	revision_count, duplicate_count, created_at, updated_at`

// Add stores an entry. An entry with the same topic key and project is
// revised in place; identical content saved again within the dedupe
// window only bumps the duplicate counter. Returns the entry id.
func (s *Store) Add(ctx context.Context, p AddParams) (int64, error) {
	title := strings.TrimSpace(p.Title)
	content := strings.TrimSpace(p.Content)
	if title == "" || content == "" {
		return 0, errors.New("memory: title and content are required")
	}
	kind := strings.TrimSpace(p.Kind)
	if kind == "" {
		kind = "note"
	}
	if n := s.cfg.MaxContentLength; len(content) > n {
		for n > 0 && !utf8.RuneStart(content[n]) {
			n--
		}
		content = content[:n] + "... [truncated]"
	}
	hash := hashNormalized(content)
	topicKey := normalizeTopicKey(p.TopicKey)

	if topicKey != "" {
		var existingID int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM entries
			 WHERE topic_key = ? AND project = ?
			 ORDER BY datetime(updated_at) DESC
			 LIMIT 1`,
			topicKey, p.Project,
		).Scan(&existingID)
		if err == nil {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE entries
				 SET kind = ?,
				     title = ?,
				     content = ?,
				     source = ?,
				     normalized_hash = ?,
				     revision_count = revision_count + 1,
				     updated_at = datetime('now')
				 WHERE id = ?`,
				kind, title, content, p.Source, hash, existingID,
			); err != nil {
				return 0, fmt.Errorf("memory: revise entry %d: %w", existingID, err)
			}
			return existingID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("memory: lookup topic %q: %w", topicKey, err)
		}
	}

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM entries
		 WHERE normalized_hash = ?
		   AND project = ?
		   AND kind = ?
		   AND title = ?
		   AND datetime(created_at) >= datetime('now', ?)
		 ORDER BY created_at DESC
		 LIMIT 1`,
		hash, p.Project, kind, title, dedupeWindowExpression(s.cfg.DedupeWindow),
	).Scan(&existingID)
	if err == nil {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE entries
			 SET duplicate_count = duplicate_count + 1,
			     updated_at = datetime('now')
			 WHERE id = ?`,
			existingID,
		); err != nil {
			return 0, fmt.Errorf("memory: bump duplicate %d: %w", existingID, err)
		}
		return existingID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("memory: dedupe lookup: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (kind, title, content, project, source, topic_key, normalized_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		kind, title, content, p.Project, p.Source, nullableString(topicKey), hash,
	)
	if err != nil {
		return 0, fmt.Errorf("memory: insert entry: %w", err)
	}
	return res.LastInsertId()
}

// Get returns a single entry by id.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	var e Entry
	if err := row.Scan(
		&e.ID, &e.Kind, &e.Title, &e.Content, &e.Project, &e.Source, &e.TopicKey,
		&e.RevisionCount, &e.DuplicateCount, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Delete removes an entry. Deleting an unknown id returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("memory: delete entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recent returns the most recently updated entries, optionally filtered by
// project.
func (s *Store) Recent(ctx context.Context, project string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}
	query := `SELECT ` + entryColumns + ` FROM entries`
	var args []any
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY datetime(updated_at) DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.Kind, &e.Title, &e.Content, &e.Project, &e.Source, &e.TopicKey,
			&e.RevisionCount, &e.DuplicateCount, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Search runs a full-text query ordered by FTS5 rank. A query with no
// searchable terms returns no results.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	ftsQuery := sanitizeFTS(query, opts.MatchAny)
	if ftsQuery == "" {
		return nil, nil
	}

	sqlStr := `
		SELECT e.id, e.kind, e.title, e.content, e.project, e.source, e.topic_key,
		       e.revision_count, e.duplicate_count, e.created_at, e.updated_at,
		       fts.rank
		FROM entries_fts fts
		JOIN entries e ON e.id = fts.rowid
		WHERE entries_fts MATCH ?
	`
	args := []any{ftsQuery}
	if opts.Kind != "" {
		sqlStr += " AND e.kind = ?"
		args = append(args, opts.Kind)
	}
	if opts.Project != "" {
		sqlStr += " AND e.project = ?"
		args = append(args, opts.Project)
	}
	sqlStr += " ORDER BY fts.rank, e.id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var sr SearchResult
		if err := rows.Scan(
			&sr.ID, &sr.Kind, &sr.Title, &sr.Content, &sr.Project, &sr.Source, &sr.TopicKey,
			&sr.RevisionCount, &sr.DuplicateCount, &sr.CreatedAt, &sr.UpdatedAt,
			&sr.Rank,
		); err != nil {
			return nil, err
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

// Stats returns aggregate statistics.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Projects: []string{}, ByKind: map[string]int{}}
	kinds, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM entries GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("memory: count entries: %w", err)
	}
	defer func() { _ = kinds.Close() }()
	for kinds.Next() {
		var kind string
		var n int
		if err := kinds.Scan(&kind, &n); err != nil {
			return nil, err
		}
		st.ByKind[kind] = n
		st.TotalEntries += n
	}
	if err := kinds.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT project FROM entries WHERE project != '' ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("memory: list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		st.Projects = append(st.Projects, p)
	}
	return st, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func normalizeTopicKey(topic string) string {
	v := strings.TrimSpace(strings.ToLower(topic))
	if v == "" {
		return ""
	}
	v = strings.Join(strings.Fields(v), "-")
	if len(v) > 120 {
		v = v[:120]
	}
	return v
}

func hashNormalized(content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

func dedupeWindowExpression(window time.Duration) string {
	if window <= 0 {
		window = 15 * time.Minute
	}
	minutes := int(window.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return "-" + strconv.Itoa(minutes) + " minutes"
}

// sanitizeFTS quotes every searchable word so user text can never be
// parsed as FTS5 syntax: "fix auth bug" → `"fix" "auth" "bug"`.
// Words without a letter or digit are dropped.
func sanitizeFTS(query string, matchAny bool) string {
	var terms []string
	for _, w := range strings.Fields(query) {
		w = strings.ReplaceAll(w, `"`, "")
		if !strings.ContainsFunc(w, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		}) {
			continue
		}
		terms = append(terms, `"`+w+`"`)
	}
	sep := " "
	if matchAny {
		sep = " OR "
	}
	return strings.Join(terms, sep)
}
