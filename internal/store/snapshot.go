package store

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lazypower/degrade/internal/counter"
)

// Snapshot files start with snapshotMagic and a format version, followed by one
// record per key: key, type name, encoding version, data.
const (
	snapshotMagic   = "DGRD"
	snapshotFormat  = 1
	maxSnapshotItem = 64 << 20
)

// ErrBadSnapshot is returned by Restore for input that is not a snapshot file.
var ErrBadSnapshot = errors.New("not a degrade snapshot")

// Dump writes a point-in-time snapshot of the keyspace to w and returns the
// number of keys written.
func (db *DB) Dump(ctx context.Context, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	bw.WriteString(snapshotMagic)
	writeUvarint(bw, snapshotFormat)

	n := 0
	err := db.Scan(ctx, func(key string, e counter.Entry) error {
		writeBytes(bw, []byte(key))
		writeBytes(bw, []byte(e.Type))
		writeVarint(bw, int64(e.Version))
		writeBytes(bw, e.Data)
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}
	return n, nil
}

// Restore replaces the keyspace with the contents of a snapshot written by
// Dump and returns the number of keys loaded. Entries are stored as-is; their
// payloads are decoded by the value type when next accessed.
func (db *DB) Restore(ctx context.Context, r io.Reader) (int, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != snapshotMagic {
		return 0, ErrBadSnapshot
	}
	format, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, ErrBadSnapshot
	}
	if format != snapshotFormat {
		return 0, fmt.Errorf("snapshot format %d: %w", format, ErrBadSnapshot)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keyspace`); err != nil {
		return 0, fmt.Errorf("clear keyspace: %w", err)
	}

	now := time.Now().UnixMilli()
	n := 0
	for {
		key, err := readBytes(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read key %d: %w", n, err)
		}
		typ, err := readBytes(br)
		if err != nil {
			return 0, fmt.Errorf("read type of %q: %w", key, err)
		}
		encver, err := binary.ReadVarint(br)
		if err != nil {
			return 0, fmt.Errorf("read version of %q: %w", key, err)
		}
		data, err := readBytes(br)
		if err != nil {
			return 0, fmt.Errorf("read data of %q: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO keyspace (name, type, encver, data, updated_at) VALUES (?, ?, ?, ?, ?)`,
			string(key), string(typ), encver, data, now,
		); err != nil {
			return 0, fmt.Errorf("restore %q: %w", key, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit restore: %w", err)
	}
	return n, nil
}

func writeUvarint(w *bufio.Writer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	w.Write(buf[:binary.PutUvarint(buf[:], v)])
}

func writeVarint(w *bufio.Writer, v int64) {
	var buf [binary.MaxVarintLen64]byte
	w.Write(buf[:binary.PutVarint(buf[:], v)])
}

func writeBytes(w *bufio.Writer, b []byte) {
	writeUvarint(w, uint64(len(b)))
	w.Write(b)
}

// readBytes reads a length-prefixed byte string. It returns io.EOF only when
// the input ends cleanly before the length.
func readBytes(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxSnapshotItem {
		return nil, fmt.Errorf("item of %d bytes: %w", n, ErrBadSnapshot)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return b, nil
}
