package tables

import (
	"errors"
	"strconv"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Well-known setting names.
const (
	SettingDefaultTaxRate = "DefaultTaxRate"
)

// Setting is a named application setting.
type Setting struct {
	types.TableRow
	Name  string `json:"name" jsonschema:"description=Setting name"`
	Value string `json:"value" jsonschema:"description=Setting value"`
}

func (s *Setting) Clone() *Setting {
	c := *s
	return &c
}

func settingsDefinition() types.Definition[*Setting] {
	return types.Definition[*Setting]{
		TableMetadata: types.TableMetadata{
			TableName:   SettingsTable,
			Compression: types.CompressionNone,
			Caching:     types.CachingMemory,
			Write:       types.WriteImmediate,
		},
		Columns: []types.Column[*Setting]{
			{Name: "name", Value: func(s *Setting) any { return s.Name }},
		},
		UniqueIndexes: []types.UniqueIndex{{Name: "ux_settings_name", Columns: []string{"name"}}},
		Required:      []string{"name"},
		Defaults: types.DefaultsFunc[*Setting]{
			SchemaVersion: 1,
			Fn: func(from int) []*Setting {
				if from >= 1 {
					return nil
				}
				return []*Setting{{Name: SettingDefaultTaxRate, Value: "20"}}
			},
		},
	}
}

// Setting returns the value of the named setting. It returns ErrNotFound if
// the setting does not exist.
func (s *Store) Setting(name string) (string, error) {
	row, err := firstMatch(s.Settings, func(r *Setting) bool { return r.Name == name })
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

// SettingInt returns the named setting parsed as an integer, or def when the
// setting does not exist.
func (s *Store) SettingInt(name string, def int) (int, error) {
	v, err := s.Setting(name)
	if errors.Is(err, types.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

// SetSetting creates or updates the named setting.
func (s *Store) SetSetting(name, value string) error {
	_, err := s.Settings.Upsert(
		func(r *Setting) bool { return r.Name == name },
		func() *Setting { return &Setting{Name: name, Value: value} },
		func(r *Setting) error {
			r.Value = value
			return nil
		})
	return err
}
