package storage

import (
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/luma/parley/protocol"
)

// InmemoryStore keeps accounts in a slice with secondary indexes by id
// and by username, guarded by a single reader/writer lock. Lookups
// take the shared lock, insertions the exclusive one.
type InmemoryStore struct {
	mu         sync.RWMutex
	users      []Account
	byID       map[protocol.UserID]int
	byUsername map[string]int
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		byID:       make(map[protocol.UserID]int),
		byUsername: make(map[string]int),
	}
}

func (s *InmemoryStore) AddUser(account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insert(account)
}

// insert requires the write lock. Checking the username and adding the
// account under the one critical section is what keeps concurrent
// registrations of the same username down to a single winner.
func (s *InmemoryStore) insert(account Account) error {
	if _, taken := s.byUsername[account.User.Username]; taken {
		return ErrUsernameTaken
	}

	index := len(s.users)
	s.byID[account.User.ID] = index
	s.byUsername[account.User.Username] = index
	s.users = append(s.users, account)

	return nil
}

func (s *InmemoryStore) FindByUsername(username string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, ok := s.byUsername[username]
	if !ok {
		return Account{}, ErrNotFound
	}

	return s.users[index], nil
}

func (s *InmemoryStore) MaxUserID() (protocol.UserID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max protocol.UserID
	for id := range s.byID {
		if id > max {
			max = id
		}
	}

	return max, len(s.users) > 0
}

func (s *InmemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}

// Restore replaces the directory contents from a Backup snapshot.
func (s *InmemoryStore) Restore(snapshot []byte) error {
	parsed := gjson.ParseBytes(snapshot)
	if !parsed.IsArray() {
		return fmt.Errorf("Snapshot is not a JSON array")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = nil
	s.byID = make(map[protocol.UserID]int)
	s.byUsername = make(map[string]int)

	for _, item := range parsed.Array() {
		username := item.Get("username").String()
		if username == "" {
			return fmt.Errorf("Snapshot entry is missing a username")
		}

		account := Account{
			User: protocol.User{
				ID:       protocol.UserID(item.Get("id").Uint()),
				Username: username,
				Nickname: item.Get("nickname").String(),
			},
			Password: item.Get("password").String(),
		}

		if err := s.insert(account); err != nil {
			return fmt.Errorf("Snapshot entry %q: %w", username, err)
		}
	}

	return nil
}

// Backup serialises every account, passwords included, as a JSON
// array. Snapshots are for operator use and are as plaintext as the
// directory itself.
func (s *InmemoryStore) Backup() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []byte(`[]`)

	var err error
	for _, account := range s.users {
		out, err = sjson.SetBytes(out, "-1", map[string]interface{}{
			"id":       account.User.ID,
			"username": account.User.Username,
			"nickname": account.User.Nickname,
			"password": account.Password,
		})
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *InmemoryStore) Close() error {
	return nil
}

var _ UserStore = (*InmemoryStore)(nil)
