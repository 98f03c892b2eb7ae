package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/luma/parley/protocol"
)

// SQLiteStore is a persistent UserStore. It exists behind the same
// interface as InmemoryStore so the connection handlers never know the
// difference; the wire protocol is unchanged.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the account database at
// path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		nickname TEXT NOT NULL,
		password TEXT NOT NULL
	)`)

	return err
}

func (s *SQLiteStore) AddUser(account Account) error {
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, username, nickname, password) VALUES (?, ?, ?, ?)`,
		uint32(account.User.ID),
		account.User.Username,
		account.User.Nickname,
		account.Password,
	)

	// The UNIQUE constraint on username is the atomic
	// check-and-insert here.
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return ErrUsernameTaken
	}

	return err
}

func (s *SQLiteStore) FindByUsername(username string) (Account, error) {
	var (
		id       uint32
		nickname string
		password string
	)

	err := s.db.
		QueryRow(`SELECT id, nickname, password FROM accounts WHERE username = ?`, username).
		Scan(&id, &nickname, &password)

	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}

	return Account{
		User: protocol.User{
			ID:       protocol.UserID(id),
			Username: username,
			Nickname: nickname,
		},
		Password: password,
	}, nil
}

func (s *SQLiteStore) MaxUserID() (protocol.UserID, bool) {
	var max sql.NullInt64

	if err := s.db.QueryRow(`SELECT MAX(id) FROM accounts`).Scan(&max); err != nil {
		return 0, false
	}

	return protocol.UserID(max.Int64), max.Valid
}

func (s *SQLiteStore) Count() int {
	var count int

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0
	}

	return count
}

func (s *SQLiteStore) Restore(snapshot []byte) error {
	parsed := gjson.ParseBytes(snapshot)
	if !parsed.IsArray() {
		return fmt.Errorf("Snapshot is not a JSON array")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM accounts`); err != nil {
		return err
	}

	for _, item := range parsed.Array() {
		username := item.Get("username").String()
		if username == "" {
			return fmt.Errorf("Snapshot entry is missing a username")
		}

		_, err := tx.Exec(
			`INSERT INTO accounts (id, username, nickname, password) VALUES (?, ?, ?, ?)`,
			uint32(item.Get("id").Uint()),
			username,
			item.Get("nickname").String(),
			item.Get("password").String(),
		)
		if err != nil {
			return fmt.Errorf("Snapshot entry %q: %w", username, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Backup() ([]byte, error) {
	rows, err := s.db.Query(`SELECT id, username, nickname, password FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []byte(`[]`)

	for rows.Next() {
		var (
			id       uint32
			username string
			nickname string
			password string
		)

		if err := rows.Scan(&id, &username, &nickname, &password); err != nil {
			return nil, err
		}

		out, err = sjson.SetBytes(out, "-1", map[string]interface{}{
			"id":       id,
			"username": username,
			"nickname": nickname,
			"password": password,
		})
		if err != nil {
			return nil, err
		}
	}

	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ UserStore = (*SQLiteStore)(nil)
