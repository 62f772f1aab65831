package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/victornm/quotient/internal/errors"
)

// DB is the subset of *pgxpool.Pool used by Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores every collection in a single jsonb table.
type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the documents table and its indexes if missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
	collection  TEXT        NOT NULL,
	id          TEXT        NOT NULL,
	data        JSONB       NOT NULL DEFAULT '{}'::jsonb,
	create_time TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	update_time TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	PRIMARY KEY (collection, id)
);`,
		`CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops);`,
		`CREATE INDEX IF NOT EXISTS documents_create_time_idx ON documents (collection, create_time, id);`,
	}

	for _, stmt := range stmts {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return errors.Storage("migrate", err)
		}
	}

	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	const stmt = `SELECT data, create_time, update_time FROM documents WHERE collection = $1 AND id = $2;`

	d := &Document{Collection: collection, ID: id}
	var data []byte
	err := p.db.QueryRow(ctx, stmt, collection, id).Scan(&data, &d.CreateTime, &d.UpdateTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound(entity(collection), id)
	}
	if err != nil {
		return nil, errors.Storage("get", err)
	}
	d.Data = data

	return d, nil
}

func (p *Postgres) List(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	where, args, err := buildWhere(collection, filters)
	if err != nil {
		return nil, err
	}

	stmt := `SELECT id, data, create_time, update_time FROM documents WHERE ` + where + ` ORDER BY create_time, id;`

	rows, err := p.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Storage("list", err)
	}

	docs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Document, error) {
		d := Document{Collection: collection}
		var data []byte
		if err := r.Scan(&d.ID, &data, &d.CreateTime, &d.UpdateTime); err != nil {
			return Document{}, err
		}
		d.Data = data
		return d, nil
	})
	if err != nil {
		return nil, errors.Storage("list", err)
	}

	return docs, nil
}

func (p *Postgres) Create(ctx context.Context, collection, id string, data any) (*Document, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	if id == "" {
		if id, err = NewID(); err != nil {
			return nil, err
		}
	}

	const stmt = `
INSERT INTO documents (collection, id, data)
VALUES ($1, $2, $3::jsonb)
RETURNING create_time, update_time;`

	d := &Document{Collection: collection, ID: id, Data: b}
	err = p.db.QueryRow(ctx, stmt, collection, id, string(b)).Scan(&d.CreateTime, &d.UpdateTime)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("%s already exists: id=%s", entity(collection), id),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, errors.Storage("create", err)
	}

	return d, nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields map[string]any) (*Document, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}

	const stmt = `
UPDATE documents
SET data = data || $3::jsonb, update_time = clock_timestamp()
WHERE collection = $1 AND id = $2
RETURNING data, create_time, update_time;`

	d := &Document{Collection: collection, ID: id}
	var data []byte
	err = p.db.QueryRow(ctx, stmt, collection, id, string(b)).Scan(&data, &d.CreateTime, &d.UpdateTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound(entity(collection), id)
	}
	if err != nil {
		return nil, errors.Storage("update", err)
	}
	d.Data = data

	return d, nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	const stmt = `DELETE FROM documents WHERE collection = $1 AND id = $2;`

	tag, err := p.db.Exec(ctx, stmt, collection, id)
	if err != nil {
		return errors.Storage("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound(entity(collection), id)
	}

	return nil
}

// AppendToArray appends in a single statement, so concurrent appends are not lost.
func (p *Postgres) AppendToArray(ctx context.Context, collection, id, field, value string) error {
	const stmt = `
UPDATE documents
SET data = CASE
		WHEN COALESCE(data->($3::text), '[]'::jsonb) @> jsonb_build_array($4::text) THEN data
		ELSE jsonb_set(data, ARRAY[$3::text], COALESCE(data->($3::text), '[]'::jsonb) || jsonb_build_array($4::text))
	END,
	update_time = clock_timestamp()
WHERE collection = $1 AND id = $2;`

	return p.execOne(ctx, "append", stmt, collection, id, field, value)
}

func (p *Postgres) RemoveFromArray(ctx context.Context, collection, id, field, value string) error {
	const stmt = `
UPDATE documents
SET data = jsonb_set(data, ARRAY[$3::text], COALESCE(
		(SELECT jsonb_agg(e) FROM jsonb_array_elements(COALESCE(data->($3::text), '[]'::jsonb)) AS e WHERE e <> to_jsonb($4::text)),
		'[]'::jsonb)),
	update_time = clock_timestamp()
WHERE collection = $1 AND id = $2;`

	return p.execOne(ctx, "remove", stmt, collection, id, field, value)
}

func (p *Postgres) execOne(ctx context.Context, op, stmt, collection, id string, args ...any) error {
	tag, err := p.db.Exec(ctx, stmt, append([]any{collection, id}, args...)...)
	if err != nil {
		return errors.Storage(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound(entity(collection), id)
	}
	return nil
}

func buildWhere(collection string, filters []Filter) (string, []any, error) {
	var (
		conds = []string{"collection = $1"}
		args  = []any{collection}
	)

	for _, f := range filters {
		switch f.Op {
		case OpEqual:
			b, err := json.Marshal(map[string]any{f.Field: f.Value})
			if err != nil {
				return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
			}
			args = append(args, string(b))
			conds = append(conds, fmt.Sprintf("data @> $%d::jsonb", len(args)))
		case OpContains:
			args = append(args, f.Field, f.Value)
			fi, vi := len(args)-1, len(args)
			conds = append(conds, fmt.Sprintf(`(CASE jsonb_typeof(data->($%[1]d::text))
	WHEN 'array' THEN (data->($%[1]d::text)) @> jsonb_build_array($%[2]d::text)
	WHEN 'string' THEN strpos(data->>($%[1]d::text), $%[2]d::text) > 0
	ELSE false END)`, fi, vi))
		default:
			return "", nil, fmt.Errorf("store: unsupported filter op %d", f.Op)
		}
	}

	return strings.Join(conds, " AND "), args, nil
}
