package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/smartdoc/policyd/internal/db"
	"github.com/smartdoc/policyd/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_document":   `INSERT INTO documents (id, name, ai_data, user_data, page_count, word_count, owner_id, ts) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_document":      `SELECT id, name, ai_data, user_data, page_count, word_count, owner_id, ts FROM documents WHERE id = $1`,
	"replace_user_data": `UPDATE documents SET user_data = $1, owner_id = $2, ts = $3 WHERE id = $4`,
	"list_documents":    `SELECT id, name, ai_data, user_data, page_count, word_count, owner_id, ts FROM documents WHERE owner_id = $1 ORDER BY ts DESC`,
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	ai_data    JSONB NOT NULL,
	user_data  JSONB,
	page_count INTEGER NOT NULL DEFAULT 0,
	word_count INTEGER NOT NULL DEFAULT 0,
	owner_id   TEXT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
CREATE INDEX IF NOT EXISTS idx_documents_owner_ts ON documents(owner_id, ts);
`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc *model.Document) error {
	aiJSON, userJSON, err := marshalDocumentData(doc)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, name, ai_data, user_data, page_count, word_count, owner_id, ts) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		doc.ID, doc.Name, aiJSON, userJSON, doc.PageCount, doc.WordCount, doc.OwnerID, doc.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert document %s", doc.ID)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, ai_data, user_data, page_count, word_count, owner_id, ts FROM documents WHERE id = $1`,
		id,
	)
	doc, err := scanPgDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return doc, nil
}

func (s *PostgresStore) ReplaceUserData(ctx context.Context, id, ownerID string, data map[string]string, ts time.Time) error {
	userJSON, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal user data")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET user_data = $1, owner_id = $2, ts = $3 WHERE id = $4`,
		string(userJSON), ownerID, ts.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: replace user data %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, ownerID string) ([]model.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT id, name, ai_data, user_data, page_count, word_count, owner_id, ts FROM documents WHERE owner_id = $1 ORDER BY ts DESC`,
		ownerID,
	)
}

func (s *PostgresStore) ListSince(ctx context.Context, ownerID string, since time.Time) ([]model.Document, error) {
	query := `SELECT id, name, ai_data, user_data, page_count, word_count, owner_id, ts FROM documents WHERE 1=1`
	var args []any

	if ownerID != "" {
		args = append(args, ownerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if !since.IsZero() {
		args = append(args, since.UTC())
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	query += " ORDER BY ts ASC"
	return s.queryDocuments(ctx, query, args...)
}

func (s *PostgresStore) queryDocuments(ctx context.Context, query string, args ...any) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanPgDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, *doc)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: iterate documents")
}

func scanPgDocument(row pgx.Row) (*model.Document, error) {
	var doc model.Document
	var aiJSON []byte
	var userJSON []byte

	err := row.Scan(&doc.ID, &doc.Name, &aiJSON, &userJSON, &doc.PageCount, &doc.WordCount, &doc.OwnerID, &doc.Timestamp)
	if err != nil {
		return nil, err
	}

	doc.Timestamp = doc.Timestamp.UTC()

	if err := json.Unmarshal(aiJSON, &doc.AIData); err != nil {
		return nil, eris.Wrap(err, "unmarshal ai_data")
	}
	if len(userJSON) > 0 {
		if err := json.Unmarshal(userJSON, &doc.UserData); err != nil {
			return nil, eris.Wrap(err, "unmarshal user_data")
		}
	}
	return &doc, nil
}
