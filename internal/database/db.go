// Package database is geobase's Store: durable, indexed persistence for
// entities and source watermarks over an embedded DuckDB file, adapted from
// the teacher repo's (tomtom215/cartographus) internal/database package —
// same driver, same spatial-extension-availability fallback, same per-key
// write locking to dodge DuckDB's single-writer-transaction conflicts.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/geobase/geobase/internal/config"
	"github.com/geobase/geobase/internal/logging"
)

// Store wraps the DuckDB connection and exposes the entity/watermark data
// access methods of spec.md §4.1.
type Store struct {
	conn             *sql.DB
	cfg              *config.DatabaseConfig
	spatialAvailable bool

	// keyLocks serializes upserts that share a dedupe key, the way the
	// teacher serializes UPSERTs sharing an IP address.
	keyLocks sync.Map

	// bulkMu serializes bulk_upsert batches against each other so an
	// all-or-nothing batch transaction never has to reason about lock
	// ordering across many dedupe keys at once.
	bulkMu sync.Mutex
}

// New opens the DuckDB file at cfg.URL, installs the spatial extension (with
// a graceful bbox-predicate fallback if it can't load), and creates the
// schema if absent.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if dbDir := filepath.Dir(cfg.URL); dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.URL, numThreads, cfg.MaxMemory, preserveOrder)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		conn:             conn,
		cfg:              cfg,
		spatialAvailable: true,
	}

	if err := s.configureConnectionPool(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}

	if err := s.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return s, nil
}

// IsSpatialAvailable reports whether geom is backed by the spatial
// extension (true) or the scalar lon/lat bbox-predicate fallback (false).
func (s *Store) IsSpatialAvailable() bool {
	return s.spatialAvailable
}

// Conn returns the underlying *sql.DB for components (stats, migrations)
// that need direct access.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// Close flushes the WAL with a checkpoint and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("failed to checkpoint store before close")
	}
	return s.conn.Close()
}

// Ping checks the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("store connection is nil")
	}
	return s.conn.PingContext(ctx)
}

// Checkpoint forces a WAL checkpoint.
func (s *Store) Checkpoint(ctx context.Context) error {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()
	if _, err := s.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

func (s *Store) initialize() error {
	if err := s.installSpatialExtension(); err != nil {
		logging.Warn().Err(err).Msg("spatial extension unavailable, falling back to scalar bbox predicates")
		s.spatialAvailable = false
	}
	if err := s.createTables(); err != nil {
		return err
	}
	if err := s.createIndexes(); err != nil {
		return err
	}
	return nil
}

// ensureContext gives every Store operation a deadline, the way the teacher
// defaults query operations to a 30s timeout when the caller passes none.
func (s *Store) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}
	return ctx, func() {}
}

func (s *Store) configureConnectionPool() error {
	maxOpen := s.cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
	}
	if s.cfg.URL == ":memory:" {
		// An in-memory DuckDB file is private to the connection that opened
		// it; pooling more than one connection against it would scatter
		// writes across independent, mutually invisible databases.
		maxOpen = 1
	}
	maxIdle := s.cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	s.conn.SetMaxOpenConns(maxOpen)
	s.conn.SetMaxIdleConns(maxIdle)
	s.conn.SetConnMaxLifetime(time.Hour)
	s.conn.SetConnMaxIdleTime(5 * time.Minute)
	return nil
}

func closeQuietly(conn *sql.DB) {
	_ = conn.Close()
}

// acquireKeyLock locks the per-dedupe-key mutex, creating it on first use.
func (s *Store) acquireKeyLock(key string) *sync.Mutex {
	muIface, _ := s.keyLocks.LoadOrStore(key, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu
}

func (s *Store) releaseKeyLock(mu *sync.Mutex) {
	mu.Unlock()
}
