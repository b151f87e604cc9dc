package tables

import (
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Country is a shipping or billing country.
type Country struct {
	types.TableRow
	Code string `json:"code" jsonschema:"description=ISO 3166-1 alpha-2 code"`
	Name string `json:"name" jsonschema:"description=English country name"`
}

func (c *Country) Clone() *Country {
	cp := *c
	return &cp
}

// countriesVersion is bumped whenever countryDefaults gains rows.
const countriesVersion = 2

func countryDefaults(from int) []*Country {
	var rows []*Country
	if from < 1 {
		rows = append(rows,
			&Country{Code: "GB", Name: "United Kingdom"},
			&Country{Code: "US", Name: "United States"},
			&Country{Code: "DE", Name: "Germany"},
			&Country{Code: "FR", Name: "France"},
		)
	}
	if from < 2 {
		rows = append(rows,
			&Country{Code: "ES", Name: "Spain"},
			&Country{Code: "IT", Name: "Italy"},
		)
	}
	return rows
}

func countriesDefinition() types.Definition[*Country] {
	return types.Definition[*Country]{
		TableMetadata: types.TableMetadata{
			TableName:   CountriesTable,
			Compression: types.CompressionBrotli,
			Caching:     types.CachingMemory,
			Write:       types.WriteImmediate,
		},
		Columns: []types.Column[*Country]{
			{Name: "code", Value: func(c *Country) any { return c.Code }},
			{Name: "name", Value: func(c *Country) any { return c.Name }},
		},
		UniqueIndexes: []types.UniqueIndex{{Name: "ux_countries_code", Columns: []string{"code"}}},
		Required:      []string{"code", "name"},
		Defaults:      types.DefaultsFunc[*Country]{SchemaVersion: countriesVersion, Fn: countryDefaults},
	}
}

// CountryByCode returns the country with the given code.
func (s *Store) CountryByCode(code string) (*Country, error) {
	return firstMatch(s.Countries, func(c *Country) bool { return c.Code == code })
}
