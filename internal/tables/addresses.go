package tables

import (
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Address is a named postal address of a user, such as "Home" or "Work".
type Address struct {
	types.TableRow
	UserID    int64  `json:"user_id" jsonschema:"description=Owning user"`
	CountryID int64  `json:"country_id" jsonschema:"description=Country, zero when unknown"`
	Name      string `json:"name" jsonschema:"description=Label unique per user"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2,omitempty"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
}

func (a *Address) Clone() *Address {
	c := *a
	return &c
}

func addressesDefinition() types.Definition[*Address] {
	return types.Definition[*Address]{
		TableMetadata: types.TableMetadata{
			TableName:   AddressesTable,
			Compression: types.CompressionGzip,
			Caching:     types.CachingSlidingMemory,
			Write:       types.WriteImmediate,
		},
		Columns: []types.Column[*Address]{
			{Name: "user_id", Value: func(a *Address) any { return a.UserID }},
			{Name: "country_id", Value: func(a *Address) any { return a.CountryID }},
			{Name: "name", Value: func(a *Address) any { return a.Name }},
		},
		ForeignKeys: []types.ForeignKey{
			{Column: "user_id", Table: UsersTable},
			{Column: "country_id", Table: CountriesTable, AllowDefaultValue: true},
		},
		UniqueIndexes: []types.UniqueIndex{
			{Name: "ux_addresses_user_name", Columns: []string{"user_id", "name"}},
		},
		Required: []string{"name"},
	}
}

// AddressesOf returns the addresses of a user.
func (s *Store) AddressesOf(userID int64) ([]*Address, error) {
	return s.Addresses.Select(func(a *Address) bool { return a.UserID == userID })
}
