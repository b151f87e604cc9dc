package tables

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// PasswordLifetime is how long a password stays valid after it is set.
const PasswordLifetime = 90 * 24 * time.Hour

// bcryptCost is lowered in tests.
var bcryptCost = bcrypt.DefaultCost

// ErrInvalidCredentials is returned by Authenticate for an unknown email or a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// User is an account of the web application.
type User struct {
	types.TableRow
	Email          string    `json:"email" jsonschema:"description=Login email address"`
	Name           string    `json:"name" jsonschema:"description=Display name"`
	UserKey        string    `json:"user_key" jsonschema:"description=Public identifier exposed to clients"`
	PasswordHash   string    `json:"password_hash" jsonschema:"description=bcrypt hash of the password"`
	PasswordExpiry time.Time `json:"password_expiry" jsonschema:"description=Time after which the password must be changed"`
	Locked         bool      `json:"locked" jsonschema:"description=Account is locked out"`

	// Password is the plain text password to set. The before-insert and
	// before-update triggers hash it and clear it; it is never stored.
	Password string `json:"-"`
}

func (u *User) Clone() *User {
	c := *u
	return &c
}

func usersDefinition(now func() time.Time) types.Definition[*User] {
	return types.Definition[*User]{
		TableMetadata: types.TableMetadata{
			TableName:   UsersTable,
			Compression: types.CompressionBrotli,
			Caching:     types.CachingMemory,
			Write:       types.WriteForced,
		},
		Columns: []types.Column[*User]{
			{Name: "email", Value: func(u *User) any { return u.Email }},
			{Name: "user_key", Value: func(u *User) any { return u.UserKey }},
		},
		UniqueIndexes: []types.UniqueIndex{
			{Name: "ux_users_email", Columns: []string{"email"}},
		},
		Required: []string{"email"},
		Triggers: []types.Trigger[*User]{
			{
				Name:  "prepare_new_user",
				Event: types.BeforeInsert,
				Fn: func(rows []*User) error {
					for _, u := range rows {
						if u.UserKey == "" {
							u.UserKey = uuid.NewString()
						}
						if err := setPassword(u, now()); err != nil {
							return err
						}
					}
					return nil
				},
			},
			{
				Name:  "rehash_password",
				Event: types.BeforeUpdate,
				Fn: func(rows []*User) error {
					for _, u := range rows {
						if u.Password == "" {
							continue
						}
						if err := setPassword(u, now()); err != nil {
							return err
						}
					}
					return nil
				},
			},
		},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// setPassword hashes u.Password, clears it and forces a new expiry.
func setPassword(u *User, now time.Time) error {
	if u.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Email, err)
		}
		u.PasswordHash = string(hash)
		u.Password = ""
	}
	u.PasswordExpiry = now.UTC().Add(PasswordLifetime)
	return nil
}

// CreateUser inserts a user with a normalized email and the given password.
func (s *Store) CreateUser(email, name, password string) (*User, error) {
	u := &User{Email: normalizeEmail(email), Name: name, Password: password}
	if err := s.Users.Insert(u); err != nil {
		return nil, err
	}
	return u, nil
}

// UserByEmail returns the user with the given email.
func (s *Store) UserByEmail(email string) (*User, error) {
	email = normalizeEmail(email)
	return firstMatch(s.Users, func(u *User) bool { return u.Email == email })
}

// Authenticate checks email and password. Locked accounts and unknown
// emails fail the same way as a wrong password.
func (s *Store) Authenticate(email, password string) (*User, error) {
	u, err := s.UserByEmail(email)
	if errors.Is(err, types.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.Locked || u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// PasswordExpired reports whether u must change password at time now.
func (u *User) PasswordExpired(now time.Time) bool {
	return !u.PasswordExpiry.IsZero() && now.After(u.PasswordExpiry)
}
