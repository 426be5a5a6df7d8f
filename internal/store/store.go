// Package store persists graph snapshots in SQLite so they can be rolled up
// and rendered again without re-querying the language server.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"callgraph/internal/errors"
	"callgraph/internal/graph"
	"callgraph/internal/logger"
	"callgraph/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	seed       TEXT NOT NULL,
	hash       TEXT NOT NULL UNIQUE,
	graph      TEXT NOT NULL,
	symbols    TEXT,
	expanded   TEXT NOT NULL DEFAULT '[]',
	node_count INTEGER NOT NULL,
	edge_count INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
`

// Snapshot is a finished graph together with how it was produced.
type Snapshot struct {
	ID string `json:"id" yaml:"id"`
	// Kind names the relation explored, e.g. "callgraph".
	Kind string `json:"kind" yaml:"kind"`
	// Seed is the file, folder or symbol the exploration started from.
	Seed     string                      `json:"seed" yaml:"seed"`
	Hash     string                      `json:"hash" yaml:"hash"`
	Graph    *graph.Graph                `json:"graph" yaml:"graph"`
	Symbols  *graph.SymbolsAndReferences `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Expanded []string                    `json:"expandedFolders" yaml:"expandedFolders"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// Info summarizes a snapshot without its graph.
type Info struct {
	ID        string    `json:"id" yaml:"id"`
	Kind      string    `json:"kind" yaml:"kind"`
	Seed      string    `json:"seed" yaml:"seed"`
	NodeCount int       `json:"nodes" yaml:"nodes"`
	EdgeCount int       `json:"edges" yaml:"edges"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// Store reads and writes snapshots.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Open opens or creates the snapshot database at path.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = logger.Named("store")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory for %s", path)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to apply %q", pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	log.Debugw("snapshot store opened", "path", path)
	return &Store{db: db, logger: log}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Digest identifies a graph by its node and edge keys and edge weights.
// Generated ids are ignored, so repeating an exploration over unchanged code
// gives the same digest.
func Digest(kind, seed string, g *graph.Graph) string {
	parts := []string{kind, seed}
	var keys []string
	for _, n := range g.Nodes {
		keys = append(keys, "n:"+n.Key)
	}
	for _, e := range g.Edges {
		keys = append(keys, fmt.Sprintf("e:%s:%d", e.Key, e.Weight))
	}
	sort.Strings(keys)
	return util.ContentHash(append(parts, keys...)...)
}

// Save stores snap and returns its id. When an identical snapshot is already
// stored, it becomes the newest snapshot, snap is replaced by the stored copy
// and its id is returned.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (string, error) {
	if snap.Graph == nil {
		return "", errors.NewInvalidRequestError("snapshot has no graph")
	}
	if snap.Kind == "" {
		return "", errors.NewInvalidRequestError("snapshot kind cannot be empty")
	}
	snap.Hash = Digest(snap.Kind, snap.Seed, snap.Graph)
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM snapshots WHERE hash = ?`, snap.Hash).Scan(&existing)
	switch {
	case err == nil:
		if err := s.refresh(ctx, existing, snap); err != nil {
			return "", err
		}
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", errors.Wrap(err, "failed to look up snapshot hash")
	}

	graphJSON, err := json.Marshal(snap.Graph)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode graph")
	}
	var symbolsJSON sql.NullString
	if snap.Symbols != nil {
		b, err := json.Marshal(snap.Symbols)
		if err != nil {
			return "", errors.Wrap(err, "failed to encode symbols")
		}
		symbolsJSON = sql.NullString{String: string(b), Valid: true}
	}
	if snap.Expanded == nil {
		snap.Expanded = []string{}
	}
	expandedJSON, err := json.Marshal(snap.Expanded)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode expanded folders")
	}

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, kind, seed, hash, graph, symbols, expanded, node_count, edge_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Kind, snap.Seed, snap.Hash, string(graphJSON), symbolsJSON, string(expandedJSON),
		len(snap.Graph.Nodes), len(snap.Graph.Edges), snap.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert snapshot")
	}

	s.logger.Infow("snapshot saved",
		logger.FieldSnapshot, snap.ID,
		logger.FieldNodeCount, len(snap.Graph.Nodes),
		logger.FieldEdgeCount, len(snap.Graph.Edges),
	)
	return snap.ID, nil
}

// refresh marks an unchanged snapshot as the newest and replaces snap with
// the stored copy, so callers see the ids that Load returns.
func (s *Store) refresh(ctx context.Context, id string, snap *Snapshot) error {
	res, err := s.db.ExecContext(ctx, `UPDATE snapshots SET created_at = ? WHERE id = ?`, snap.CreatedAt.UnixNano(), id)
	if err != nil {
		return errors.Wrap(err, "failed to refresh snapshot")
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	stored, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Debugw("snapshot unchanged", logger.FieldSnapshot, id)
	*snap = *stored
	return nil
}

const selectSnapshot = `SELECT id, kind, seed, hash, graph, symbols, expanded, created_at FROM snapshots`

// Load returns the snapshot with the given id.
func (s *Store) Load(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, selectSnapshot+` WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("snapshot %s", id)
	}
	return snap, err
}

// Latest returns the most recently created snapshot.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, selectSnapshot+` ORDER BY created_at DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("no snapshots stored")
	}
	return snap, err
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		snap                Snapshot
		graphJSON, expanded string
		symbolsJSON         sql.NullString
		createdAt           int64
	)
	if err := row.Scan(&snap.ID, &snap.Kind, &snap.Seed, &snap.Hash, &graphJSON, &symbolsJSON, &expanded, &createdAt); err != nil {
		return nil, err
	}
	snap.CreatedAt = time.Unix(0, createdAt)

	snap.Graph = &graph.Graph{}
	if err := json.Unmarshal([]byte(graphJSON), snap.Graph); err != nil {
		return nil, errors.Wrapf(err, "failed to decode graph of snapshot %s", snap.ID)
	}
	if symbolsJSON.Valid {
		snap.Symbols = &graph.SymbolsAndReferences{}
		if err := json.Unmarshal([]byte(symbolsJSON.String), snap.Symbols); err != nil {
			return nil, errors.Wrapf(err, "failed to decode symbols of snapshot %s", snap.ID)
		}
	}
	if err := json.Unmarshal([]byte(expanded), &snap.Expanded); err != nil {
		return nil, errors.Wrapf(err, "failed to decode expanded folders of snapshot %s", snap.ID)
	}
	return &snap, nil
}

// List returns summaries of all snapshots, newest first.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, seed, node_count, edge_count, created_at
		FROM snapshots ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list snapshots")
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		var createdAt int64
		if err := rows.Scan(&info.ID, &info.Kind, &info.Seed, &info.NodeCount, &info.EdgeCount, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan snapshot")
		}
		info.CreatedAt = time.Unix(0, createdAt)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// SetExpanded records the expanded folders of a snapshot, so the next rollup
// starts from the same boundary.
func (s *Store) SetExpanded(ctx context.Context, id string, folders []string) error {
	if folders == nil {
		folders = []string{}
	}
	b, err := json.Marshal(folders)
	if err != nil {
		return errors.Wrap(err, "failed to encode expanded folders")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE snapshots SET expanded = ? WHERE id = ?`, string(b), id)
	if err != nil {
		return errors.Wrap(err, "failed to update expanded folders")
	}
	return requireRow(res, id)
}

// SetGraph replaces the graph of a snapshot. Only display state such as
// hidden nodes may change; the digest is not recomputed.
func (s *Store) SetGraph(ctx context.Context, id string, g *graph.Graph) error {
	b, err := json.Marshal(g)
	if err != nil {
		return errors.Wrap(err, "failed to encode graph")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE snapshots SET graph = ? WHERE id = ?`, string(b), id)
	if err != nil {
		return errors.Wrap(err, "failed to update graph")
	}
	return requireRow(res, id)
}

// Delete removes a snapshot.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete snapshot")
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check affected rows")
	}
	if n == 0 {
		return errors.NewNotFoundError("snapshot %s", id)
	}
	return nil
}
