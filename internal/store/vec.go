package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// ANN acceleration via the sqlite-vec vec0 virtual table. Only reachable when
// detectVecExtension found the extension; the JSON-encoded embeddings on the
// changes table remain the source of truth.

func (s *ChangeStore) ensureVecTable(ctx context.Context, dims int) error {
	if s.vecDims == dims {
		return nil
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS vec_changes USING vec0(change_id integer primary key, embedding float[%d] distance_metric=cosine)",
		dims,
	))
	if err != nil {
		return err
	}
	s.vecDims = dims
	return nil
}

func (s *ChangeStore) putVec(ctx context.Context, rowID int64, vec []float32) error {
	if err := s.ensureVecTable(ctx, len(vec)); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_changes (change_id, embedding) VALUES (?, ?)",
		rowID, serializeFloat32(vec),
	)
	return err
}

func (s *ChangeStore) searchVec(ctx context.Context, query []float32, k int) ([]ScoredChange, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT change_id, distance FROM vec_changes WHERE embedding MATCH ? AND k = ? ORDER BY distance",
		serializeFloat32(query), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type hit struct {
		id       int64
		distance float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]ScoredChange, 0, len(hits))
	for _, h := range hits {
		c, err := s.getByID(ctx, h.id)
		if err != nil {
			continue
		}
		results = append(results, ScoredChange{
			Change:     c,
			Similarity: 1 - h.distance,
		})
	}
	return results, nil
}

// getByID loads one change. Callers must hold the lock.
func (s *ChangeStore) getByID(ctx context.Context, id int64) (Change, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, commit_hash, author, email, authored_at, subject, body, files, summary, embedding, created_at
		 FROM changes WHERE id = ?`, id,
	)
	c, _, err := scanChange(row)
	return c, err
}

// serializeFloat32 encodes a vector in the little-endian layout sqlite-vec
// expects for float[] columns.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
