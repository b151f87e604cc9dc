// Package tables declares the application tables kept in SimpleDB: users
// and their addresses, countries, settings, cron jobs and the download
// catalogue.
package tables

import (
	"fmt"

	"github.com/mesh-intelligence/simpledb/internal/simpledb"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Table names.
const (
	CountriesTable          = "countries"
	UsersTable              = "users"
	AddressesTable          = "addresses"
	SettingsTable           = "settings"
	CronJobsTable           = "cron_jobs"
	DownloadCategoriesTable = "download_categories"
	DownloadItemsTable      = "download_items"
)

// DownloadsDomain groups the download catalogue tables on disk.
const DownloadsDomain = "Downloads"

// Store holds the typed handles of every application table.
type Store struct {
	db *simpledb.Database

	Countries          *simpledb.Table[*Country]
	Users              *simpledb.Table[*User]
	Addresses          *simpledb.Table[*Address]
	Settings           *simpledb.Table[*Setting]
	CronJobs           *simpledb.Table[*CronJob]
	DownloadCategories *simpledb.Table[*DownloadCategory]
	DownloadItems      *simpledb.Table[*DownloadItem]
}

// RegisterAll registers the application tables in foreign key order.
func RegisterAll(db *simpledb.Database) (*Store, error) {
	s := &Store{db: db}
	now := db.Config().Now

	var err error
	if s.Countries, err = simpledb.Register(db, countriesDefinition()); err != nil {
		return nil, registerError(CountriesTable, err)
	}
	if s.Users, err = simpledb.Register(db, usersDefinition(now)); err != nil {
		return nil, registerError(UsersTable, err)
	}
	if s.Addresses, err = simpledb.Register(db, addressesDefinition()); err != nil {
		return nil, registerError(AddressesTable, err)
	}
	if s.Settings, err = simpledb.Register(db, settingsDefinition()); err != nil {
		return nil, registerError(SettingsTable, err)
	}
	if s.CronJobs, err = simpledb.Register(db, cronJobsDefinition(now)); err != nil {
		return nil, registerError(CronJobsTable, err)
	}
	if s.DownloadCategories, err = simpledb.Register(db, downloadCategoriesDefinition()); err != nil {
		return nil, registerError(DownloadCategoriesTable, err)
	}
	if s.DownloadItems, err = simpledb.Register(db, downloadItemsDefinition()); err != nil {
		return nil, registerError(DownloadItemsTable, err)
	}
	return s, nil
}

// DB returns the database the tables are registered in.
func (s *Store) DB() *simpledb.Database {
	return s.db
}

// RowTypes maps every application table name to an empty row, for tools that
// describe tables without opening them.
func RowTypes() map[string]any {
	return map[string]any{
		CountriesTable:          &Country{},
		UsersTable:              &User{},
		AddressesTable:          &Address{},
		SettingsTable:           &Setting{},
		CronJobsTable:           &CronJob{},
		DownloadCategoriesTable: &DownloadCategory{},
		DownloadItemsTable:      &DownloadItem{},
	}
}

func registerError(table string, err error) error {
	return fmt.Errorf("register %s: %w", table, err)
}

// firstMatch returns the first row of tbl for which match holds, or
// ErrNotFound.
func firstMatch[T types.Row[T]](tbl *simpledb.Table[T], match func(T) bool) (T, error) {
	var zero T
	rows, err := tbl.Select(match)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, types.ErrNotFound
	}
	return rows[0], nil
}
