package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/segmentio/encoding/json"
	"github.com/sqlc-dev/pqtype"

	"github.com/onnwee/forcegraph/internal/graph"
)

// LoadGraph returns up to maxNodes nodes, heaviest first, and the links
// among them. maxNodes <= 0 loads everything.
func (s *Store) LoadGraph(ctx context.Context, maxNodes int) (g graph.Graph, err error) {
	ctx, finish := startOp(ctx, "load_graph")
	defer func() { finish(err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var limit interface{}
	if maxNodes > 0 {
		limit = maxNodes
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, weight, pos_x, pos_y FROM graph_nodes ORDER BY weight DESC, id LIMIT $1`, limit)
	if err != nil {
		return g, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var n graph.Node
		var x, y sql.NullFloat64
		if err := rows.Scan(&n.ID, &n.Name, &n.Weight, &x, &y); err != nil {
			return g, fmt.Errorf("scan node: %w", err)
		}
		if x.Valid && y.Valid {
			n.X, n.Y, n.HasPos = x.Float64, y.Float64, true
		}
		g.Nodes = append(g.Nodes, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return g, fmt.Errorf("iterate nodes: %w", err)
	}
	if len(ids) == 0 {
		return g, nil
	}

	linkRows, err := s.db.QueryContext(ctx,
		`SELECT source, target FROM graph_links WHERE source = ANY($1) AND target = ANY($1) ORDER BY source, target`,
		pq.Array(ids))
	if err != nil {
		return g, fmt.Errorf("query links: %w", err)
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var l graph.Link
		if err := linkRows.Scan(&l.Source, &l.Target); err != nil {
			return g, fmt.Errorf("scan link: %w", err)
		}
		g.Links = append(g.Links, l)
	}
	if err := linkRows.Err(); err != nil {
		return g, fmt.Errorf("iterate links: %w", err)
	}
	return g, nil
}

// StoredPositions returns every node that has a persisted position.
func (s *Store) StoredPositions(ctx context.Context) (out []graph.Position, err error) {
	ctx, finish := startOp(ctx, "stored_positions")
	defer func() { finish(err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pos_x, pos_y FROM graph_nodes WHERE pos_x IS NOT NULL AND pos_y IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p graph.Position
		if err := rows.Scan(&p.ID, &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePositions writes positions in batches inside one transaction, so a
// reader never sees a half-applied layout.
func (s *Store) SavePositions(ctx context.Context, positions []graph.Position) (err error) {
	if len(positions) == 0 {
		return nil
	}
	ctx, finish := startOp(ctx, "save_positions")
	defer func() { finish(err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE graph_nodes AS n
		SET pos_x = v.x, pos_y = v.y, updated_at = now()
		FROM UNNEST($1::text[], $2::float8[], $3::float8[]) AS v(id, x, y)
		WHERE n.id = v.id`)
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for _, b := range batches(len(positions), s.batchSize) {
		chunk := positions[b[0]:b[1]]
		ids := make([]string, len(chunk))
		xs := make([]float64, len(chunk))
		ys := make([]float64, len(chunk))
		for i, p := range chunk {
			ids[i], xs[i], ys[i] = p.ID, p.X, p.Y
		}
		if _, err = stmt.ExecContext(ctx, pq.Array(ids), pq.Array(xs), pq.Array(ys)); err != nil {
			return fmt.Errorf("update batch %d-%d: %w", b[0], b[1], err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ImportGraph upserts nodes and inserts links, skipping duplicates. Stored
// positions of existing nodes are kept unless the import carries one.
func (s *Store) ImportGraph(ctx context.Context, g graph.Graph) (err error) {
	ctx, finish := startOp(ctx, "import_graph")
	defer func() { finish(err) }()
	if err = g.Validate(); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO graph_nodes (id, name, weight, pos_x, pos_y)
		SELECT v.id, v.name, v.weight,
			CASE WHEN v.has_pos THEN v.x END,
			CASE WHEN v.has_pos THEN v.y END
		FROM UNNEST($1::text[], $2::text[], $3::float8[], $4::float8[], $5::float8[], $6::bool[])
			AS v(id, name, weight, x, y, has_pos)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, weight = EXCLUDED.weight,
			pos_x = COALESCE(EXCLUDED.pos_x, graph_nodes.pos_x),
			pos_y = COALESCE(EXCLUDED.pos_y, graph_nodes.pos_y), updated_at = now()`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer nodeStmt.Close()

	for _, b := range batches(len(g.Nodes), s.batchSize) {
		if _, err = nodeStmt.ExecContext(ctx, nodeColumns(g.Nodes[b[0]:b[1]])...); err != nil {
			return fmt.Errorf("upsert nodes %d-%d: %w", b[0], b[1], err)
		}
	}

	links := dedupeLinks(g.Links)
	for _, b := range batches(len(links), s.batchSize) {
		batch := links[b[0]:b[1]]
		sources := make([]string, len(batch))
		targets := make([]string, len(batch))
		for i, l := range batch {
			sources[i], targets[i] = l.Source, l.Target
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO graph_links (source, target)
			 SELECT * FROM UNNEST($1::text[], $2::text[])
			 ON CONFLICT (source, target) DO NOTHING`,
			pq.Array(sources), pq.Array(targets)); err != nil {
			return fmt.Errorf("insert links %d-%d: %w", b[0], b[1], err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecordRun appends a row to layout_runs. Params are stored as JSONB.
func (s *Store) RecordRun(ctx context.Context, run graph.Run) (err error) {
	ctx, finish := startOp(ctx, "record_run")
	defer func() { finish(err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", run.ID, err)
	}
	params, err := encodeParams(run.Params)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO layout_runs (id, started_at, duration_ms, nodes, links, saved, params)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, run.StartedAt, run.Duration.Milliseconds(), run.Nodes, run.Links, run.Saved, params)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) (out []graph.Run, err error) {
	ctx, finish := startOp(ctx, "recent_runs")
	defer func() { finish(err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, nodes, links, saved, params
		 FROM layout_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			run        graph.Run
			id         uuid.UUID
			durationMS int64
			params     pqtype.NullRawMessage
		)
		if err := rows.Scan(&id, &run.StartedAt, &durationMS, &run.Nodes, &run.Links, &run.Saved, &params); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.ID = id.String()
		run.Duration = time.Duration(durationMS) * time.Millisecond
		if run.Params, err = decodeParams(params); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// CountGraph reports stored node and link totals for metrics.
func (s *Store) CountGraph(ctx context.Context) (nodes, links int64, err error) {
	ctx, finish := startOp(ctx, "count_graph")
	defer func() { finish(err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT count(*) FROM graph_nodes), (SELECT count(*) FROM graph_links)`).Scan(&nodes, &links)
	if err != nil {
		return 0, 0, fmt.Errorf("count graph: %w", err)
	}
	return nodes, links, nil
}

func encodeParams(p graph.Params) (pqtype.NullRawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("encode params: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

// decodeParams treats a NULL column as zero params.
func decodeParams(m pqtype.NullRawMessage) (graph.Params, error) {
	var p graph.Params
	if !m.Valid || len(m.RawMessage) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(m.RawMessage, &p); err != nil {
		return p, fmt.Errorf("decode params: %w", err)
	}
	return p, nil
}

// nodeColumns turns nodes into the six array parameters of the node
// upsert. Positions of nodes without HasPos are sent as zero and masked by
// the has_pos column.
func nodeColumns(nodes []graph.Node) []interface{} {
	ids := make([]string, len(nodes))
	names := make([]string, len(nodes))
	weights := make([]float64, len(nodes))
	xs := make([]float64, len(nodes))
	ys := make([]float64, len(nodes))
	hasPos := make([]bool, len(nodes))
	for i, n := range nodes {
		ids[i], names[i], weights[i] = n.ID, n.Name, n.Weight
		if n.HasPos {
			xs[i], ys[i], hasPos[i] = n.X, n.Y, true
		}
	}
	return []interface{}{
		pq.Array(ids), pq.Array(names), pq.Array(weights),
		pq.Array(xs), pq.Array(ys), pq.Array(hasPos),
	}
}

// batches splits [0,n) into [start,end) ranges of at most size.
func batches(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// dedupeLinks drops repeated and self links, keeping first-seen order.
func dedupeLinks(links []graph.Link) []graph.Link {
	seen := make(map[[2]string]struct{}, len(links))
	out := make([]graph.Link, 0, len(links))
	for _, l := range links {
		if l.Source == l.Target {
			continue
		}
		key := [2]string{l.Source, l.Target}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
