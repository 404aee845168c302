package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/schema"
)

// Postgres keeps one JSONB document per object in a single table.
type Postgres struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenPostgres connects using a lib/pq DSN.
func OpenPostgres(dsn string, logger *zap.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewPostgres(db, logger), nil
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(db *sql.DB, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping verifies the database connection
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// CreateTables creates the document table
func (p *Postgres) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS metadata_objects (
			type VARCHAR(255) NOT NULL,
			uid VARCHAR(11) NOT NULL,
			doc JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (type, uid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_objects_type ON metadata_objects(type)`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	p.logger.Info("document table ready")
	return nil
}

func (p *Postgres) Load(ctx context.Context, typeName, uid string) (schema.Document, bool, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT doc FROM metadata_objects WHERE type = $1 AND uid = $2`,
		typeName, uid).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s/%s: %w", typeName, uid, err)
	}
	doc, err := unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (p *Postgres) LoadAll(ctx context.Context, typeName string) ([]schema.Document, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT doc FROM metadata_objects WHERE type = $1 ORDER BY uid`, typeName)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", typeName, err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", typeName, err)
		}
		doc, err := unmarshal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// uniqueViolation is the SQLSTATE for duplicate primary keys.
const uniqueViolation = "23505"

func (p *Postgres) Insert(ctx context.Context, typeName, uid string, doc schema.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", typeName, uid, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO metadata_objects (type, uid, doc) VALUES ($1, $2, $3)`,
		typeName, uid, data)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", typeName, uid, err)
	}
	return nil
}

func (p *Postgres) Replace(ctx context.Context, typeName, uid string, doc schema.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", typeName, uid, err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE metadata_objects SET doc = $3, updated_at = NOW() WHERE type = $1 AND uid = $2`,
		typeName, uid, data)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", typeName, uid, err)
	}
	return requireRow(res)
}

func (p *Postgres) Remove(ctx context.Context, typeName, uid string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM metadata_objects WHERE type = $1 AND uid = $2`, typeName, uid)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", typeName, uid, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errMissing
	}
	return nil
}
