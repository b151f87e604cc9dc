// Table-level metadata: where a table lives on disk and how it is compressed,
// cached and written.
package types

import (
	"fmt"
	"strings"
	"time"
)

// CompressionType selects the codec applied to the whole table file.
type CompressionType string

// Supported compression types.
const (
	CompressionNone   CompressionType = "none"
	CompressionBrotli CompressionType = "brotli"
	CompressionGzip   CompressionType = "gzip"
	CompressionZstd   CompressionType = "zstd"
)

// Valid reports whether c is a known compression type.
func (c CompressionType) Valid() bool {
	switch c {
	case CompressionNone, CompressionBrotli, CompressionGzip, CompressionZstd:
		return true
	}
	return false
}

// CachingStrategy governs how long the decoded rows of a table stay resident.
type CachingStrategy string

// Supported caching strategies.
const (
	// CachingNone reads the file on every access.
	CachingNone CachingStrategy = "none"
	// CachingMemory keeps the rows resident until the database is closed.
	CachingMemory CachingStrategy = "memory"
	// CachingSlidingMemory keeps the rows resident until they have not been
	// accessed for the table's sliding expiry.
	CachingSlidingMemory CachingStrategy = "sliding_memory"
)

// Valid reports whether s is a known caching strategy.
func (s CachingStrategy) Valid() bool {
	switch s {
	case CachingNone, CachingMemory, CachingSlidingMemory:
		return true
	}
	return false
}

// WriteStrategy governs when an in-memory mutation reaches the table file.
type WriteStrategy string

// Supported write strategies.
const (
	// WriteImmediate replaces the table file before the operation returns.
	// The new file is fsynced before it is renamed into place.
	WriteImmediate WriteStrategy = "immediate"
	// WriteForced is WriteImmediate plus an fsync of the directory, so the
	// rename is durable when the operation returns.
	WriteForced WriteStrategy = "forced"
	// WriteLazy acknowledges the mutation in memory and flushes it later.
	WriteLazy WriteStrategy = "lazy"
)

// Valid reports whether w is a known write strategy.
func (w WriteStrategy) Valid() bool {
	switch w {
	case WriteImmediate, WriteForced, WriteLazy:
		return true
	}
	return false
}

// invalidPathChars are rejected in table names and domains on every platform.
const invalidPathChars = `<>:"/\|?*`

// TableMetadata is the per-table configuration shared by every row of a type.
// It is fixed when the table is registered.
type TableMetadata struct {
	// Domain is an optional subdirectory grouping related tables.
	Domain string
	// TableName is the file-system-safe name of the table.
	TableName string

	Compression CompressionType
	Caching     CachingStrategy
	Write       WriteStrategy

	// SlidingExpiry overrides Config.SlidingExpiry for CachingSlidingMemory
	// tables. Zero uses the database default.
	SlidingExpiry time.Duration
}

// Normalize returns a copy of m with empty enums replaced by their defaults:
// no compression, memory caching and immediate writes.
func (m TableMetadata) Normalize() TableMetadata {
	if m.Compression == "" {
		m.Compression = CompressionNone
	}
	if m.Caching == "" {
		m.Caching = CachingMemory
	}
	if m.Write == "" {
		m.Write = WriteImmediate
	}
	return m
}

// Validate checks the metadata after Normalize. It returns an error wrapping
// ErrInvalidMetadata on failure.
func (m TableMetadata) Validate() error {
	if m.TableName == "" {
		return fmt.Errorf("%w: table name must not be empty", ErrInvalidMetadata)
	}
	if err := validatePathSegment("table name", m.TableName); err != nil {
		return err
	}
	if m.Domain != "" {
		if err := validatePathSegment("domain", m.Domain); err != nil {
			return err
		}
	}
	if !m.Compression.Valid() {
		return fmt.Errorf("%w: table %s: unknown compression %q", ErrInvalidMetadata, m.TableName, m.Compression)
	}
	if !m.Caching.Valid() {
		return fmt.Errorf("%w: table %s: unknown caching strategy %q", ErrInvalidMetadata, m.TableName, m.Caching)
	}
	if !m.Write.Valid() {
		return fmt.Errorf("%w: table %s: unknown write strategy %q", ErrInvalidMetadata, m.TableName, m.Write)
	}
	if m.SlidingExpiry < 0 {
		return fmt.Errorf("%w: table %s: sliding expiry must not be negative", ErrInvalidMetadata, m.TableName)
	}
	return nil
}

// QualifiedName returns "domain/table", or the bare table name when the table
// has no domain.
func (m TableMetadata) QualifiedName() string {
	if m.Domain == "" {
		return m.TableName
	}
	return m.Domain + "/" + m.TableName
}

func validatePathSegment(what, s string) error {
	if s == "." || s == ".." {
		return fmt.Errorf("%w: %s %q is reserved", ErrInvalidMetadata, what, s)
	}
	if strings.TrimSpace(s) != s {
		return fmt.Errorf("%w: %s %q has leading or trailing spaces", ErrInvalidMetadata, what, s)
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(invalidPathChars, r) {
			return fmt.Errorf("%w: %s %q contains invalid character %q", ErrInvalidMetadata, what, s, r)
		}
	}
	return nil
}
