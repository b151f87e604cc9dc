// Package storage reads and writes SimpleDB table files.
//
// A table file is a plain JSON header line followed by the row payload: one
// JSON object per line, compressed with the codec named in the header. The
// header carries the sequence counters, the schema version of the default
// data, the row count and an xxhash64 checksum of the uncompressed payload.
//
// Files are replaced atomically: the new content is written to a temporary
// file in the same directory and renamed over the old one.
package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// FormatVersion is the table file format written by Save.
const FormatVersion = 1

// FileExtension is appended to the table name to form the file name.
const FileExtension = ".sdb"

// maxRowSize bounds a single encoded row on load.
const maxRowSize = 64 << 20

// Header is the first line of a table file.
type Header struct {
	Format            int                   `json:"format"`
	Table             string                `json:"table"`
	Compression       types.CompressionType `json:"compression"`
	PrimarySequence   int64                 `json:"primary_sequence"`
	SecondarySequence int64                 `json:"secondary_sequence"`
	SchemaVersion     int                   `json:"schema_version"`
	Rows              int                   `json:"rows"`
	Checksum          string                `json:"checksum"`
	Saved             time.Time             `json:"saved"`
}

// Image is the decoded content of a table file. Rows hold the encoded rows in
// file order.
type Image struct {
	Header Header
	Rows   [][]byte
	// Exists is false when the file was not found; Header and Rows are then
	// zero.
	Exists bool
}

// Path returns the location of a table file under root:
// root/domain/table.sdb, or root/table.sdb when domain is empty.
func Path(root, domain, table string) string {
	if domain == "" {
		return filepath.Join(root, table+FileExtension)
	}
	return filepath.Join(root, domain, table+FileExtension)
}

// Load reads the table file at path. A missing file is not an error: it
// returns an empty Image with Exists false.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Image{}, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	br := bufio.NewReader(f)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("decoding header of %s: %w", path, err)
	}
	if h.Format != FormatVersion {
		return nil, fmt.Errorf("%s: unsupported format version %d", path, h.Format)
	}

	dec, err := newDecompressor(h.Compression, br)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer func() {
		_ = dec.Close()
	}()

	digest := xxhash.New()
	scanner := bufio.NewScanner(io.TeeReader(dec, digest))
	scanner.Buffer(make([]byte, 0, 64*1024), maxRowSize)
	rows := make([][]byte, 0, h.Rows)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		rows = append(rows, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading rows of %s: %w", path, err)
	}
	if len(rows) != h.Rows {
		return nil, fmt.Errorf("%s: header declares %d rows, found %d", path, h.Rows, len(rows))
	}
	if sum := formatChecksum(digest.Sum64()); sum != h.Checksum {
		return nil, fmt.Errorf("%s: checksum mismatch: header %s, payload %s", path, h.Checksum, sum)
	}
	return &Image{Header: h, Rows: rows, Exists: true}, nil
}

// Save replaces the table file at path with h and rows. Format, Rows and
// Checksum of h are filled in. The temp file is always fsynced before the
// rename; when durable is set the directory is fsynced as well, so the
// rename itself survives a crash.
func Save(path string, h Header, rows [][]byte, durable bool) error {
	for i, row := range rows {
		if bytes.IndexByte(row, '\n') >= 0 {
			return fmt.Errorf("row %d contains a newline", i)
		}
	}

	digest := xxhash.New()
	for _, row := range rows {
		_, _ = digest.Write(row)
		_, _ = digest.Write([]byte{'\n'})
	}
	h.Format = FormatVersion
	h.Rows = len(rows)
	h.Checksum = formatChecksum(digest.Sum64())
	if h.Compression == "" {
		h.Compression = types.CompressionNone
	}
	header, err := json.Marshal(&h)
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(header); err != nil {
		return fail(fmt.Errorf("writing header: %w", err))
	}
	if err := w.WriteByte('\n'); err != nil {
		return fail(fmt.Errorf("writing header: %w", err))
	}
	enc, err := newCompressor(h.Compression, w)
	if err != nil {
		return fail(err)
	}
	for _, row := range rows {
		if _, err := enc.Write(row); err != nil {
			_ = enc.Close()
			return fail(fmt.Errorf("writing row: %w", err))
		}
		if _, err := enc.Write([]byte{'\n'}); err != nil {
			_ = enc.Close()
			return fail(fmt.Errorf("writing newline: %w", err))
		}
	}
	if err := enc.Close(); err != nil {
		return fail(fmt.Errorf("closing %s encoder: %w", h.Compression, err))
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := syncFile(tmp); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	if durable {
		if err := syncDir(dir); err != nil {
			return fmt.Errorf("syncing directory %s: %w", dir, err)
		}
	}
	return nil
}

// syncFile is replaced in tests to observe fsync calls.
var syncFile = func(f *os.File) error { return f.Sync() }

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() {
		_ = d.Close()
	}()
	return syncFile(d)
}

func formatChecksum(sum uint64) string {
	s := strconv.FormatUint(sum, 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}
