package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    TableMetadata
		wantErr bool
	}{
		{"plain name", TableMetadata{TableName: "settings"}, false},
		{"with domain", TableMetadata{Domain: "Downloads", TableName: "download_items"}, false},
		{"empty name", TableMetadata{}, true},
		{"slash in name", TableMetadata{TableName: "a/b"}, true},
		{"backslash in name", TableMetadata{TableName: `a\b`}, true},
		{"colon in domain", TableMetadata{Domain: "c:", TableName: "t"}, true},
		{"question mark", TableMetadata{TableName: "what?"}, true},
		{"control character", TableMetadata{TableName: "tab\tname"}, true},
		{"dot dot", TableMetadata{TableName: ".."}, true},
		{"dot domain", TableMetadata{Domain: ".", TableName: "t"}, true},
		{"trailing space", TableMetadata{TableName: "users "}, true},
		{"unknown compression", TableMetadata{TableName: "t", Compression: "lz4"}, true},
		{"unknown caching", TableMetadata{TableName: "t", Caching: "disk"}, true},
		{"unknown write", TableMetadata{TableName: "t", Write: "sometimes"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Normalize().Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidMetadata)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTableMetadataNormalize(t *testing.T) {
	m := TableMetadata{TableName: "t"}.Normalize()
	assert.Equal(t, CompressionNone, m.Compression)
	assert.Equal(t, CachingMemory, m.Caching)
	assert.Equal(t, WriteImmediate, m.Write)

	m = TableMetadata{TableName: "t", Compression: CompressionZstd, Caching: CachingNone, Write: WriteLazy}.Normalize()
	assert.Equal(t, CompressionZstd, m.Compression)
	assert.Equal(t, CachingNone, m.Caching)
	assert.Equal(t, WriteLazy, m.Write)
}

func TestTableMetadataQualifiedName(t *testing.T) {
	assert.Equal(t, "settings", TableMetadata{TableName: "settings"}.QualifiedName())
	assert.Equal(t, "Downloads/items", TableMetadata{Domain: "Downloads", TableName: "items"}.QualifiedName())
}
