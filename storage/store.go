package storage

import (
	"errors"

	"github.com/luma/parley/protocol"
)

var (
	// ErrUsernameTaken is returned by AddUser when the username is
	// already registered.
	ErrUsernameTaken = errors.New("Username is already registered")

	// ErrNotFound is returned by lookups for unregistered usernames.
	ErrNotFound = errors.New("User not found")
)

// Account is a registered user plus the secret checked at connect
// time. The password stays inside the process; it is compared, never
// sent back over the wire.
type Account struct {
	User     protocol.User
	Password string
}

// UserStore is the directory of registered accounts, the single source
// of truth shared by every connection handler.
//
// Implementations must be safe for concurrent use. Locks are held for
// the duration of a single call, never across network I/O.
type UserStore interface {
	// AddUser inserts the account, indexed by both id and username.
	// The username uniqueness check and the insert are a single atomic
	// step: a taken username fails with ErrUsernameTaken.
	AddUser(account Account) error

	// FindByUsername looks an account up by its unique login key.
	// Absent usernames fail with ErrNotFound.
	FindByUsername(username string) (Account, error)

	// MaxUserID returns the highest id ever stored, and false when the
	// store holds no accounts. Id generation is seeded past it when a
	// store is restored or reopened.
	MaxUserID() (protocol.UserID, bool)

	// Count returns the number of registered accounts.
	Count() int

	// Restore replaces the store contents from a Backup snapshot.
	Restore(snapshot []byte) error

	// Backup returns a JSON snapshot of every account.
	Backup() ([]byte, error)

	Close() error
}
