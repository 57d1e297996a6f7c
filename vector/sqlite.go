package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/viterin/vek/vek32"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps embeddings in a local SQLite database, one row per chunk.
// Vectors are stored as little-endian float32 blobs; filtering happens in SQL,
// scoring in memory.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vector database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize vector schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			chunk_id   TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time   INTEGER NOT NULL,
			embedding  BLOB NOT NULL,
			metadata   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_session ON chunks(session_id);
		CREATE INDEX IF NOT EXISTS idx_chunks_time ON chunks(start_time, end_time);
	`)
	return err
}

func (s *SQLiteStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (chunk_id, session_id, start_time, end_time, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", r.ChunkID, err)
		}
		_, err = stmt.ExecContext(ctx, r.ChunkID, r.Metadata.SessionID,
			r.Metadata.StartTime, r.Metadata.EndTime, encodeVector(r.Vector), meta)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", r.ChunkID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, chunkID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chunk_id, embedding, metadata FROM chunks WHERE chunk_id = ?`, chunkID)
	return scanRecord(row)
}

func (s *SQLiteStore) Has(ctx context.Context, chunkID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM chunks WHERE chunk_id = ?`, chunkID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Search scores every row passing the filter against the query and returns the
// topK by cosine similarity, best first.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, filter Filter, topK int) ([]SearchResult, error) {
	q := `SELECT chunk_id, embedding, metadata FROM chunks WHERE 1=1`
	args := []any{}
	if filter.SessionID != "" {
		q += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.StartTime > 0 {
		q += ` AND end_time >= ?`
		args = append(args, filter.StartTime)
	}
	if filter.EndTime > 0 {
		q += ` AND start_time <= ?`
		args = append(args, filter.EndTime)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var rec Record
		var blob, meta []byte
		if err := rows.Scan(&rec.ChunkID, &blob, &meta); err != nil {
			return nil, err
		}
		rec.Vector = decodeVector(blob)
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", rec.ChunkID, err)
		}
		results = append(results, SearchResult{Record: rec, Score: cosine(query, rec.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return err
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.Records)
	return st, err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanRecord(row *sql.Row) (*Record, error) {
	var rec Record
	var blob, meta []byte
	err := row.Scan(&rec.ChunkID, &blob, &meta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Vector = decodeVector(blob)
	if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", rec.ChunkID, err)
	}
	return &rec, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	dot := float64(vek32.Dot(a, b))
	magA := math.Sqrt(float64(vek32.Dot(a, a)))
	magB := math.Sqrt(float64(vek32.Dot(b, b)))
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (magA * magB)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
