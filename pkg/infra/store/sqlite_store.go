// Package store provides the SQLite-backed implementation of the shared
// pipeline store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements pipeline.PipelineStore using SQLite. Nested
// structures (config, metadata, inputs, asset, output) are stored as JSON
// in TEXT columns; every multi-row mutation runs inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath. The returned
// store holds the only connection handle; callers own its lifecycle and
// must Close it at shutdown.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS pipelines (
		id TEXT PRIMARY KEY,
		version INTEGER NOT NULL DEFAULT 1,
		title TEXT NOT NULL,
		config TEXT,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS nodes (
		pipeline_id TEXT NOT NULL,
		id TEXT NOT NULL,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		provider TEXT,
		inputs TEXT,
		config TEXT,
		asset TEXT,
		status TEXT NOT NULL,
		metadata TEXT,
		output TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (pipeline_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_pipeline ON nodes(pipeline_id);
	CREATE INDEX IF NOT EXISTS idx_nodes_status ON nodes(status);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) CreatePipeline(ctx context.Context, p *pipeline.Pipeline) error {
	configJSON, _ := json.Marshal(p.Config)
	metadataJSON, _ := json.Marshal(p.Metadata)

	query := `
		INSERT INTO pipelines (id, version, title, config, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Version, p.Title, string(configJSON), string(metadataJSON),
		p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return pipeline.NewError(pipeline.ErrCodeConflict, "pipeline %s already exists", p.ID)
		}
		return fmt.Errorf("insert pipeline: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPipeline(ctx context.Context, id string) (*pipeline.Pipeline, error) {
	query := `SELECT id, version, title, config, metadata, created_at, updated_at FROM pipelines WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	p := &pipeline.Pipeline{}
	var configStr, metadataStr sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&p.ID, &p.Version, &p.Title, &configStr, &metadataStr, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, pipeline.NewError(pipeline.ErrCodeNotFound, "pipeline %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline: %w", err)
	}

	if configStr.Valid && configStr.String != "" {
		json.Unmarshal([]byte(configStr.String), &p.Config)
	}
	if metadataStr.Valid && metadataStr.String != "" {
		json.Unmarshal([]byte(metadataStr.String), &p.Metadata)
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return p, nil
}

func (s *SQLiteStore) TouchPipeline(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE pipelines SET updated_at = ? WHERE id = ?`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("touch pipeline: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pipeline.NewError(pipeline.ErrCodeNotFound, "pipeline %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) UpdatePipelineMetadata(ctx context.Context, id string, m pipeline.PipelineMetadata) error {
	metadataJSON, _ := json.Marshal(m)
	result, err := s.db.ExecContext(ctx,
		`UPDATE pipelines SET metadata = ?, updated_at = ? WHERE id = ?`,
		string(metadataJSON), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("update pipeline metadata: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pipeline.NewError(pipeline.ErrCodeNotFound, "pipeline %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) CreateNode(ctx context.Context, n *pipeline.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pipelines WHERE id = ?`, n.PipelineID).Scan(&count); err != nil {
		return fmt.Errorf("check pipeline: %w", err)
	}
	if count == 0 {
		return pipeline.NewError(pipeline.ErrCodeNotFound, "pipeline %s not found", n.PipelineID)
	}

	query := `
		INSERT INTO nodes (pipeline_id, id, title, type, provider, inputs, config, asset, status, metadata, output, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		n.PipelineID, n.ID, n.Title, string(n.Type), n.Provider,
		marshalOrNull(n.Inputs, len(n.Inputs) > 0), nullableString(string(n.Config)),
		marshalOrNull(n.Asset, n.Asset != nil), string(n.Status),
		marshalOrNull(n.Metadata, n.Metadata != nil), marshalOrNull(n.Output, n.Output != nil),
		n.CreatedAt.Unix(), n.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return pipeline.NewError(pipeline.ErrCodeConflict, "node %s already exists in pipeline %s", n.ID, n.PipelineID)
		}
		return fmt.Errorf("insert node: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pipelines SET updated_at = ? WHERE id = ?`, n.CreatedAt.Unix(), n.PipelineID); err != nil {
		return fmt.Errorf("touch pipeline: %w", err)
	}

	return tx.Commit()
}

const nodeColumns = `pipeline_id, id, title, type, provider, inputs, config, asset, status, metadata, output, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*pipeline.Node, error) {
	n := &pipeline.Node{}
	var provider, inputs, config, asset, metadata, output sql.NullString
	var typeStr, statusStr string
	var createdAt, updatedAt int64

	err := row.Scan(
		&n.PipelineID, &n.ID, &n.Title, &typeStr, &provider,
		&inputs, &config, &asset, &statusStr, &metadata, &output,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Type = pipeline.NodeType(typeStr)
	n.Status = pipeline.NodeStatus(statusStr)
	n.Provider = provider.String
	if inputs.Valid && inputs.String != "" {
		json.Unmarshal([]byte(inputs.String), &n.Inputs)
	}
	if config.Valid && config.String != "" {
		n.Config = json.RawMessage(config.String)
	}
	if asset.Valid && asset.String != "" {
		n.Asset = &pipeline.NodeAsset{}
		json.Unmarshal([]byte(asset.String), n.Asset)
	}
	if metadata.Valid && metadata.String != "" {
		n.Metadata = &pipeline.NodeMetadata{}
		json.Unmarshal([]byte(metadata.String), n.Metadata)
	}
	if output.Valid && output.String != "" {
		n.Output = &pipeline.NodeOutput{}
		json.Unmarshal([]byte(output.String), n.Output)
	}
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	n.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return n, nil
}

func (s *SQLiteStore) GetNode(ctx context.Context, pipelineID, nodeID string) (*pipeline.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE pipeline_id = ? AND id = ?`
	n, err := scanNode(s.db.QueryRowContext(ctx, query, pipelineID, nodeID))
	if err == sql.ErrNoRows {
		return nil, pipeline.NewError(pipeline.ErrCodeNotFound, "node %s not found in pipeline %s", nodeID, pipelineID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) GetNodes(ctx context.Context, pipelineID string, ids []string) ([]pipeline.Node, error) {
	// Requested order is significant, so fetch one by one and skip misses.
	result := make([]pipeline.Node, 0, len(ids))
	for _, id := range ids {
		n, err := s.GetNode(ctx, pipelineID, id)
		if err != nil {
			if pipeline.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		result = append(result, *n)
	}
	return result, nil
}

func (s *SQLiteStore) ListNodes(ctx context.Context, pipelineID string) ([]pipeline.Node, error) {
	if _, err := s.GetPipeline(ctx, pipelineID); err != nil {
		return nil, err
	}

	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE pipeline_id = ? ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []pipeline.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// UpdateNodeStructural merges the structural field family inside one
// transaction as a read-modify-write, leaving state fields untouched.
func (s *SQLiteStore) UpdateNodeStructural(ctx context.Context, pipelineID, nodeID string, u pipeline.StructuralUpdate) error {
	return s.mutateNode(ctx, pipelineID, nodeID, true, func(n *pipeline.Node) {
		if u.Title != nil {
			n.Title = *u.Title
		}
		if u.Inputs != nil {
			n.Inputs = u.Inputs
		}
		if u.Config != nil {
			n.Config = json.RawMessage(u.Config)
		}
		if u.Status != nil {
			n.Status = *u.Status
		}
	})
}

// UpdateNodeState merges the state field family inside one transaction,
// leaving structural fields untouched.
func (s *SQLiteStore) UpdateNodeState(ctx context.Context, pipelineID, nodeID string, u pipeline.StateUpdate) error {
	return s.mutateNode(ctx, pipelineID, nodeID, false, func(n *pipeline.Node) {
		if u.Status != nil {
			n.Status = *u.Status
		}
		if u.Metadata != nil {
			n.Metadata = pipeline.ApplyMetadataPatch(n.Metadata, u.Metadata)
		}
		if u.Output != nil {
			o := *u.Output
			n.Output = &o
		}
	})
}

func (s *SQLiteStore) mutateNode(ctx context.Context, pipelineID, nodeID string, touchPipeline bool, apply func(*pipeline.Node)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE pipeline_id = ? AND id = ?`
	n, err := scanNode(tx.QueryRowContext(ctx, query, pipelineID, nodeID))
	if err == sql.ErrNoRows {
		return pipeline.NewError(pipeline.ErrCodeNotFound, "node %s not found in pipeline %s", nodeID, pipelineID)
	}
	if err != nil {
		return fmt.Errorf("scan node: %w", err)
	}

	apply(n)
	now := time.Now().UTC()

	if err := updateNodeRow(ctx, tx, n, now); err != nil {
		return err
	}
	if touchPipeline {
		if _, err := tx.ExecContext(ctx,
			`UPDATE pipelines SET updated_at = ? WHERE id = ?`, now.Unix(), pipelineID); err != nil {
			return fmt.Errorf("touch pipeline: %w", err)
		}
	}

	return tx.Commit()
}

func updateNodeRow(ctx context.Context, tx *sql.Tx, n *pipeline.Node, now time.Time) error {
	query := `
		UPDATE nodes SET
			title = ?, type = ?, provider = ?, inputs = ?, config = ?,
			asset = ?, status = ?, metadata = ?, output = ?, updated_at = ?
		WHERE pipeline_id = ? AND id = ?
	`
	_, err := tx.ExecContext(ctx, query,
		n.Title, string(n.Type), n.Provider,
		marshalOrNull(n.Inputs, len(n.Inputs) > 0), nullableString(string(n.Config)),
		marshalOrNull(n.Asset, n.Asset != nil), string(n.Status),
		marshalOrNull(n.Metadata, n.Metadata != nil), marshalOrNull(n.Output, n.Output != nil),
		now.Unix(), n.PipelineID, n.ID,
	)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	return nil
}

// DeleteNodeCascade deletes the node and scrubs its id from every other
// node's input slots, all inside one transaction: either the whole
// cleanup lands or none of it does.
func (s *SQLiteStore) DeleteNodeCascade(ctx context.Context, pipelineID, nodeID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE pipeline_id = ?`
	rows, err := tx.QueryContext(ctx, query, pipelineID)
	if err != nil {
		return fmt.Errorf("query nodes: %w", err)
	}

	var others []*pipeline.Node
	found := false
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan node: %w", err)
		}
		if n.ID == nodeID {
			found = true
			continue
		}
		others = append(others, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate nodes: %w", err)
	}
	rows.Close()

	if !found {
		return pipeline.NewError(pipeline.ErrCodeNotFound, "node %s not found in pipeline %s", nodeID, pipelineID)
	}

	now := time.Now().UTC()
	for _, other := range others {
		scrubbed, changed := pipeline.ScrubInputs(other.Type, other.Inputs, nodeID)
		if !changed {
			continue
		}
		other.Inputs = scrubbed
		if err := updateNodeRow(ctx, tx, other, now); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM nodes WHERE pipeline_id = ? AND id = ?`, pipelineID, nodeID); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE pipelines SET updated_at = ? WHERE id = ?`, now.Unix(), pipelineID); err != nil {
		return fmt.Errorf("touch pipeline: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func marshalOrNull(v any, present bool) any {
	if !present {
		return nil
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

var _ pipeline.PipelineStore = (*SQLiteStore)(nil)
