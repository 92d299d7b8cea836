package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

const schema = `
CREATE TABLE index_meta (
	build_id        TEXT NOT NULL,
	embedding_model TEXT NOT NULL,
	dimensions      INTEGER NOT NULL,
	metric          TEXT NOT NULL,
	chunk_size      INTEGER NOT NULL,
	chunk_overlap   INTEGER NOT NULL,
	documents       INTEGER NOT NULL,
	chunks          INTEGER NOT NULL,
	built_at        TEXT NOT NULL
);
CREATE TABLE chunks (
	source    TEXT NOT NULL,
	seq       INTEGER NOT NULL,
	text      TEXT NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY (source, seq)
);
`

// openSQLite opens path through a file: URI so characters such as '?', '#'
// and '%' in the directory name reach SQLite as part of the path.
func openSQLite(path, mode string) (*sql.DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=" + mode}
	return sql.Open("sqlite3", u.String())
}

// writeSQLite creates a fresh index database at path. The file must not exist.
func writeSQLite(ctx context.Context, path string, meta entities.IndexMeta, entries []entities.IndexEntry) error {
	db, err := openSQLite(path, "rwc")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_meta (build_id, embedding_model, dimensions, metric, chunk_size, chunk_overlap, documents, chunks, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, meta.BuildID, meta.EmbeddingModel, meta.Dimensions, meta.Metric, meta.ChunkSize, meta.ChunkOverlap,
		meta.Documents, meta.Chunks, meta.BuiltAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (source, seq, text, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Chunk.Source, e.Chunk.Seq, e.Chunk.Text, encodeEmbedding(e.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk %s#%d: %w", e.Chunk.Source, e.Chunk.Seq, err)
		}
	}
	return tx.Commit()
}

// readSQLite loads a whole index database.
func readSQLite(ctx context.Context, path string) (entities.IndexMeta, []entities.IndexEntry, error) {
	var meta entities.IndexMeta

	db, err := openSQLite(path, "ro")
	if err != nil {
		return meta, nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var builtAt string
	err = db.QueryRowContext(ctx, `
		SELECT build_id, embedding_model, dimensions, metric, chunk_size, chunk_overlap, documents, chunks, built_at
		FROM index_meta
	`).Scan(&meta.BuildID, &meta.EmbeddingModel, &meta.Dimensions, &meta.Metric, &meta.ChunkSize,
		&meta.ChunkOverlap, &meta.Documents, &meta.Chunks, &builtAt)
	if err != nil {
		return meta, nil, fmt.Errorf("reading metadata: %w", err)
	}
	if meta.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt); err != nil {
		return meta, nil, fmt.Errorf("parsing built_at: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT source, seq, text, embedding FROM chunks ORDER BY source, seq`)
	if err != nil {
		return meta, nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	entries := make([]entities.IndexEntry, 0, meta.Chunks)
	for rows.Next() {
		var e entities.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.Chunk.Source, &e.Chunk.Seq, &e.Chunk.Text, &blob); err != nil {
			return meta, nil, fmt.Errorf("scanning row: %w", err)
		}
		if e.Embedding, err = decodeEmbedding(blob); err != nil {
			return meta, nil, fmt.Errorf("chunk %s#%d: %w", e.Chunk.Source, e.Chunk.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return meta, nil, fmt.Errorf("reading chunks: %w", err)
	}
	return meta, entries, nil
}

// Embeddings are stored as little-endian float32.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
