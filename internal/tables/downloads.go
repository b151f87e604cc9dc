package tables

import (
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// DownloadCategory groups downloadable files. Categories nest through
// ParentID; zero is a top-level category.
type DownloadCategory struct {
	types.TableRow
	Name     string `json:"name" jsonschema:"description=Category name unique within its parent"`
	ParentID int64  `json:"parent_id" jsonschema:"description=Parent category, zero for top level"`
}

func (c *DownloadCategory) Clone() *DownloadCategory {
	cp := *c
	return &cp
}

// DownloadItem is a downloadable file.
type DownloadItem struct {
	types.TableRow
	CategoryID  int64  `json:"category_id" jsonschema:"description=Owning category"`
	Filename    string `json:"filename" jsonschema:"description=File name unique within its category"`
	Description string `json:"description,omitempty"`
	Size        int64  `json:"size"`
	Downloads   int64  `json:"downloads" jsonschema:"description=Number of completed downloads"`
}

func (d *DownloadItem) Clone() *DownloadItem {
	cp := *d
	return &cp
}

func downloadCategoriesDefinition() types.Definition[*DownloadCategory] {
	return types.Definition[*DownloadCategory]{
		TableMetadata: types.TableMetadata{
			Domain:      DownloadsDomain,
			TableName:   DownloadCategoriesTable,
			Compression: types.CompressionZstd,
			Caching:     types.CachingMemory,
			Write:       types.WriteImmediate,
		},
		Columns: []types.Column[*DownloadCategory]{
			{Name: "name", Value: func(c *DownloadCategory) any { return c.Name }},
			{Name: "parent_id", Value: func(c *DownloadCategory) any { return c.ParentID }},
		},
		ForeignKeys: []types.ForeignKey{
			{Column: "parent_id", Table: DownloadCategoriesTable, AllowDefaultValue: true},
		},
		UniqueIndexes: []types.UniqueIndex{
			{Name: "ux_download_categories_parent_name", Columns: []string{"parent_id", "name"}},
		},
		Required: []string{"name"},
	}
}

func downloadItemsDefinition() types.Definition[*DownloadItem] {
	return types.Definition[*DownloadItem]{
		TableMetadata: types.TableMetadata{
			Domain:      DownloadsDomain,
			TableName:   DownloadItemsTable,
			Compression: types.CompressionZstd,
			Caching:     types.CachingMemory,
			Write:       types.WriteImmediate,
		},
		Columns: []types.Column[*DownloadItem]{
			{Name: "category_id", Value: func(d *DownloadItem) any { return d.CategoryID }},
			{Name: "filename", Value: func(d *DownloadItem) any { return d.Filename }},
		},
		ForeignKeys: []types.ForeignKey{
			{Column: "category_id", Table: DownloadCategoriesTable},
		},
		UniqueIndexes: []types.UniqueIndex{
			{Name: "ux_download_items_category_filename", Columns: []string{"category_id", "filename"}},
		},
		Required: []string{"filename"},
	}
}

// ItemsIn returns the download items of a category.
func (s *Store) ItemsIn(categoryID int64) ([]*DownloadItem, error) {
	return s.DownloadItems.Select(func(d *DownloadItem) bool { return d.CategoryID == categoryID })
}

// RecordDownload increments the download counter of an item.
func (s *Store) RecordDownload(itemID int64) (*DownloadItem, error) {
	return s.DownloadItems.Modify(itemID, func(d *DownloadItem) error {
		d.Downloads++
		return nil
	})
}
