package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS graphs (
	name        TEXT PRIMARY KEY,
	seed        TEXT NOT NULL,
	as_of       TIMESTAMPTZ NOT NULL,
	views_start TIMESTAMPTZ,
	views_end   TIMESTAMPTZ,
	run_id      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS graph_nodes (
	graph      TEXT NOT NULL REFERENCES graphs(name) ON DELETE CASCADE,
	seq        INT NOT NULL,
	title      TEXT NOT NULL,
	hop        INT NOT NULL,
	link_count INT NOT NULL,
	delta      DOUBLE PRECISION,
	no_views   BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (graph, title)
);
CREATE TABLE IF NOT EXISTS graph_edges (
	graph TEXT NOT NULL REFERENCES graphs(name) ON DELETE CASCADE,
	seq   INT NOT NULL,
	src   TEXT NOT NULL,
	dst   TEXT NOT NULL,
	PRIMARY KEY (graph, src, dst)
);`

const upsertGraphQuery = `
INSERT INTO graphs (name, seed, as_of, views_start, views_end, run_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (name) DO UPDATE SET
	seed = EXCLUDED.seed,
	as_of = EXCLUDED.as_of,
	views_start = EXCLUDED.views_start,
	views_end = EXCLUDED.views_end,
	run_id = EXCLUDED.run_id,
	created_at = EXCLUDED.created_at`

// PostgresStore keeps graphs in three relational tables.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore opens the database and creates the schema if needed.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Op: "connect", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &types.StorageError{Backend: "postgres", Op: "ping", Err: err}
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, &types.StorageError{Backend: "postgres", Op: "migrate", Err: err}
	}

	return &PostgresStore{
		db:     db,
		logger: logger.With("component", "postgres_store"),
	}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

// Save replaces any previous version of the graph in a single transaction.
func (s *PostgresStore) Save(ctx context.Context, g *graph.Graph) error {
	meta := g.Meta
	if meta.Name == "" {
		return &types.StorageError{Backend: "postgres", Op: "save", Err: errors.New("graph has no name")}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.StorageError{Backend: "postgres", Op: "save", Err: err}
	}
	defer tx.Rollback() // no-op after commit

	_, err = tx.ExecContext(ctx, upsertGraphQuery,
		meta.Name, meta.Seed, meta.AsOf, nullTime(meta.ViewsStart), nullTime(meta.ViewsEnd), meta.RunID, meta.CreatedAt)
	if err != nil {
		return &types.StorageError{Backend: "postgres", Op: "save", Err: fmt.Errorf("upsert graph: %w", err)}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_nodes WHERE graph = $1`, meta.Name); err != nil {
		return &types.StorageError{Backend: "postgres", Op: "save", Err: fmt.Errorf("clear nodes: %w", err)}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_edges WHERE graph = $1`, meta.Name); err != nil {
		return &types.StorageError{Backend: "postgres", Op: "save", Err: fmt.Errorf("clear edges: %w", err)}
	}

	nodes := g.Nodes()
	err = copyRows(ctx, tx, pq.CopyIn("graph_nodes", "graph", "seq", "title", "hop", "link_count", "delta", "no_views"),
		len(nodes), func(i int) []any {
			n := nodes[i]
			return []any{meta.Name, i, n.Title, n.Hop, n.LinkCount, n.Delta, n.NoViews}
		})
	if err != nil {
		return &types.StorageError{Backend: "postgres", Op: "save", Err: fmt.Errorf("copy nodes: %w", err)}
	}

	edges := g.Edges()
	err = copyRows(ctx, tx, pq.CopyIn("graph_edges", "graph", "seq", "src", "dst"),
		len(edges), func(i int) []any {
			return []any{meta.Name, i, edges[i].From, edges[i].To}
		})
	if err != nil {
		return &types.StorageError{Backend: "postgres", Op: "save", Err: fmt.Errorf("copy edges: %w", err)}
	}

	if err := tx.Commit(); err != nil {
		return &types.StorageError{Backend: "postgres", Op: "save", Err: err}
	}
	s.logger.Info("graph saved", "name", meta.Name, "nodes", len(nodes), "edges", len(edges))
	return nil
}

// copyRows streams n rows through a COPY statement.
func copyRows(ctx context.Context, tx *sql.Tx, query string, n int, row func(int) []any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range n {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return err
		}
	}
	_, err = stmt.ExecContext(ctx)
	return err
}

// Load reads a graph back in insertion order.
func (s *PostgresStore) Load(ctx context.Context, name string) (*graph.Graph, error) {
	var (
		doc                  Document
		viewsStart, viewsEnd sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, seed, as_of, views_start, views_end, run_id, created_at FROM graphs WHERE name = $1`, name).
		Scan(&doc.Meta.Name, &doc.Meta.Seed, &doc.Meta.AsOf, &viewsStart, &viewsEnd, &doc.Meta.RunID, &doc.Meta.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("%w: graph %q", types.ErrNotFound, name)
		}
		return nil, &types.StorageError{Backend: "postgres", Op: "load", Err: err}
	}
	doc.Meta.ViewsStart = viewsStart.Time
	doc.Meta.ViewsEnd = viewsEnd.Time

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, hop, link_count, delta, no_views FROM graph_nodes WHERE graph = $1 ORDER BY seq`, name)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Op: "load", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var (
			n     graph.Node
			delta sql.NullFloat64
		)
		if err := rows.Scan(&n.Title, &n.Hop, &n.LinkCount, &delta, &n.NoViews); err != nil {
			return nil, &types.StorageError{Backend: "postgres", Op: "load", Err: err}
		}
		if delta.Valid {
			n.Delta = &delta.Float64
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Backend: "postgres", Op: "load", Err: err}
	}

	edgeRows, err := s.db.QueryContext(ctx,
		`SELECT src, dst FROM graph_edges WHERE graph = $1 ORDER BY seq`, name)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Op: "load", Err: err}
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e graph.Edge
		if err := edgeRows.Scan(&e.From, &e.To); err != nil {
			return nil, &types.StorageError{Backend: "postgres", Op: "load", Err: err}
		}
		doc.Edges = append(doc.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, &types.StorageError{Backend: "postgres", Op: "load", Err: err}
	}

	g, err := FromDocument(doc)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Op: "load", Err: err}
	}
	return g, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
