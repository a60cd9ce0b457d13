// Package duckdb provides a DuckDB implementation of the query engine.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/lib/pq"

	"github.com/tmdc-io/pgduck/pkg/engine"
)

// dsq is the statement builder for catalog queries; DuckDB binds '?' placeholders.
var dsq = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Config holds DuckDB adapter configuration.
type Config struct {
	// Path is the database file. Empty means in-memory.
	Path string

	// AllowUnsignedExtensions permits loading extensions from a custom repository.
	AllowUnsignedExtensions bool

	// Extensions are installed and loaded from the official repository.
	Extensions []string

	// LocalExtensions are installed and loaded from ExtensionRepository.
	LocalExtensions     []string
	ExtensionRepository string

	// BootstrapSQL runs after extensions are loaded, typically CREATE SECRET statements.
	BootstrapSQL []string
}

// Adapter implements engine.Engine using DuckDB.
type Adapter struct {
	db        *sql.DB
	connector io.Closer
}

// New creates a new DuckDB adapter over an existing database handle.
func New(db *sql.DB) (*Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("duckdb database handle is required")
	}
	return &Adapter{db: db}, nil
}

// Open creates the database, loads extensions and runs the bootstrap statements.
// Any failure here is fatal: the engine would not be able to serve Iceberg scans.
func Open(ctx context.Context, cfg Config) (*Adapter, error) {
	connector, err := duckdb.NewConnector(dsn(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("creating duckdb connector: %w", err)
	}

	a := &Adapter{
		db:        sql.OpenDB(connector),
		connector: connector,
	}

	if err := a.Bootstrap(ctx, cfg); err != nil {
		_ = a.Close()
		return nil, err
	}

	if cfg.Path == "" {
		slog.Info("using in-memory duckdb database")
	} else {
		slog.Info("using duckdb database", "path", cfg.Path)
	}
	return a, nil
}

// dsn builds the connector DSN from the configuration.
func dsn(cfg Config) string {
	allowUnsigned := cfg.AllowUnsignedExtensions || len(cfg.LocalExtensions) > 0
	if !allowUnsigned {
		return cfg.Path
	}
	return cfg.Path + "?allow_unsigned_extensions=true"
}

// Bootstrap installs extensions and runs the bootstrap statements in order.
func (a *Adapter) Bootstrap(ctx context.Context, cfg Config) error {
	if err := a.loadExtensions(ctx, cfg.Extensions); err != nil {
		return err
	}

	if repo := strings.TrimSpace(cfg.ExtensionRepository); repo != "" {
		slog.Info("using custom extension repository", "repository", repo)
		if err := a.exec(ctx, "SET custom_extension_repository = "+pq.QuoteLiteral(repo)); err != nil {
			return fmt.Errorf("setting extension repository: %w", err)
		}
		if err := a.loadExtensions(ctx, cfg.LocalExtensions); err != nil {
			return err
		}
		if err := a.exec(ctx, "RESET custom_extension_repository"); err != nil {
			return fmt.Errorf("resetting extension repository: %w", err)
		}
	}

	for i, stmt := range cfg.BootstrapSQL {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		// bootstrap statements usually carry credentials; only the index is logged
		if err := a.exec(ctx, stmt); err != nil {
			return fmt.Errorf("running bootstrap statement %d: %w", i, err)
		}
		slog.Debug("bootstrap statement executed", "index", i)
	}
	return nil
}

func (a *Adapter) loadExtensions(ctx context.Context, extensions []string) error {
	for _, ext := range extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if err := a.exec(ctx, "INSTALL "+ext); err != nil {
			return fmt.Errorf("installing extension %s: %w", ext, err)
		}
		if err := a.exec(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("loading extension %s: %w", ext, err)
		}
		slog.Info("duckdb extension loaded", "extension", ext)
	}
	return nil
}

func (a *Adapter) exec(ctx context.Context, stmt string) error {
	_, err := a.db.ExecContext(ctx, stmt)
	return err
}

// Name returns the engine name.
func (*Adapter) Name() string {
	return "duckdb"
}

// Execute runs a statement and collects every row it returns.
func (a *Adapter) Execute(ctx context.Context, stmt string) (*engine.Result, error) {
	rows, err := a.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := &engine.Result{
		Columns: columns,
		Rows:    make([][]any, 0),
	}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Views lists user-defined views.
func (a *Adapter) Views(ctx context.Context) ([]engine.View, error) {
	query, args, err := dsq.Select("schema_name", "view_name").
		From("duckdb_views()").
		Where(sq.Eq{"internal": false}).
		OrderBy("view_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building views query: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing views: %w", err)
	}
	defer func() { _ = rows.Close() }()

	views := make([]engine.View, 0)
	for rows.Next() {
		var v engine.View
		if err := rows.Scan(&v.Schema, &v.Name); err != nil {
			return nil, fmt.Errorf("scanning view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// Secrets lists registered secrets by name and type.
func (a *Adapter) Secrets(ctx context.Context) ([]engine.Secret, error) {
	query, args, err := dsq.Select("name", "type").
		From("duckdb_secrets()").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building secrets query: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing secrets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	secrets := make([]engine.Secret, 0)
	for rows.Next() {
		var s engine.Secret
		if err := rows.Scan(&s.Name, &s.Type); err != nil {
			return nil, fmt.Errorf("scanning secret: %w", err)
		}
		secrets = append(secrets, s)
	}
	return secrets, rows.Err()
}

// Close releases the database handle and the connector.
func (a *Adapter) Close() error {
	err := a.db.Close()
	if a.connector != nil {
		if cerr := a.connector.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Verify interface compliance.
var _ engine.Engine = (*Adapter)(nil)
