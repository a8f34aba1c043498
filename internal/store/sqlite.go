package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/smartdoc/policyd/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	ai_data    TEXT NOT NULL,
	user_data  TEXT,
	page_count INTEGER NOT NULL DEFAULT 0,
	word_count INTEGER NOT NULL DEFAULT 0,
	owner_id   TEXT NOT NULL,
	ts         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
CREATE INDEX IF NOT EXISTS idx_documents_owner_ts ON documents(owner_id, ts);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *model.Document) error {
	aiJSON, userJSON, err := marshalDocumentData(doc)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, ai_data, user_data, page_count, word_count, owner_id, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, aiJSON, userJSON, doc.PageCount, doc.WordCount, doc.OwnerID, doc.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert document %s", doc.ID)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, ai_data, user_data, page_count, word_count, owner_id, ts
		 FROM documents WHERE id = ?`,
		id,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return doc, nil
}

func (s *SQLiteStore) ReplaceUserData(ctx context.Context, id, ownerID string, data map[string]string, ts time.Time) error {
	userJSON, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal user data")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET user_data = ?, owner_id = ?, ts = ? WHERE id = ?`,
		string(userJSON), ownerID, ts.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: replace user data %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, ownerID string) ([]model.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT id, name, ai_data, user_data, page_count, word_count, owner_id, ts
		 FROM documents WHERE owner_id = ? ORDER BY ts DESC`,
		ownerID,
	)
}

func (s *SQLiteStore) ListSince(ctx context.Context, ownerID string, since time.Time) ([]model.Document, error) {
	query := `SELECT id, name, ai_data, user_data, page_count, word_count, owner_id, ts
		 FROM documents WHERE 1=1`
	var args []any

	if ownerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	if !since.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY ts ASC`
	return s.queryDocuments(ctx, query, args...)
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query documents")
	}
	defer rows.Close() //nolint:errcheck

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		docs = append(docs, *doc)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: iterate documents")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*model.Document, error) {
	var doc model.Document
	var aiJSON string
	var userJSON sql.NullString

	err := row.Scan(&doc.ID, &doc.Name, &aiJSON, &userJSON, &doc.PageCount, &doc.WordCount, &doc.OwnerID, &doc.Timestamp)
	if err != nil {
		return nil, err
	}

	doc.Timestamp = doc.Timestamp.UTC()

	if err := json.Unmarshal([]byte(aiJSON), &doc.AIData); err != nil {
		return nil, eris.Wrap(err, "unmarshal ai_data")
	}
	if userJSON.Valid && userJSON.String != "" {
		if err := json.Unmarshal([]byte(userJSON.String), &doc.UserData); err != nil {
			return nil, eris.Wrap(err, "unmarshal user_data")
		}
	}
	return &doc, nil
}

func marshalDocumentData(doc *model.Document) (string, string, error) {
	aiJSON, err := json.Marshal(doc.AIData)
	if err != nil {
		return "", "", eris.Wrap(err, "marshal ai_data")
	}
	userJSON, err := json.Marshal(doc.UserData)
	if err != nil {
		return "", "", eris.Wrap(err, "marshal user_data")
	}
	return string(aiJSON), string(userJSON), nil
}
