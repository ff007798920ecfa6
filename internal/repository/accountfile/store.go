// Package accountfile stores the account table as a single JSON file.
//
// The whole table is rewritten on every mutation: write to a temp file in
// the same directory, copy the previous file to <path>.bak, then rename the
// temp file into place. The rename is atomic on POSIX filesystems, so a
// crash mid-write leaves either the old file or the new one, and the .bak
// copy preserves the previous valid state either way.
package accountfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/model"
	"github.com/normaq/clientbook/internal/repository"
)

// compile-time check that *Store implements repository.AccountRepository
var _ repository.AccountRepository = (*Store)(nil)

// Store is a file-backed account repository. All operations lock; the file
// on disk always reflects the last completed mutation.
type Store struct {
	mu       sync.Mutex
	path     string
	accounts map[string]*model.Account
}

// fileFormat is the on-disk shape: login -> account.
type fileFormat map[string]*model.Account

// Open loads the account file at path, creating an empty store if the file
// does not exist yet.
//
// If the file exists but cannot be parsed, Open returns
// apperror.ErrCorruptStore and preserves the unreadable file as
// <path>.corrupt-<unix timestamp> so nothing is silently discarded. The
// caller decides whether to fall back to a fresh bootstrap.
func Open(path string) (*Store, error) {
	s := &Store{
		path:     path,
		accounts: make(map[string]*model.Account),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accountfile: reading %s: %w", path, err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		if renameErr := os.Rename(path, quarantine); renameErr != nil {
			return nil, fmt.Errorf("accountfile: quarantining corrupt store: %w", renameErr)
		}
		return nil, apperror.CorruptStore(path, err)
	}

	for login, acc := range parsed {
		if acc == nil {
			continue
		}
		acc.Login = login
		s.accounts[login] = acc
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(ctx context.Context, login string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[login]
	if !ok {
		return nil, apperror.UnknownAccount(login)
	}
	return acc.Clone(), nil
}

func (s *Store) List(ctx context.Context) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logins := make([]string, 0, len(s.accounts))
	for login := range s.accounts {
		logins = append(logins, login)
	}
	sort.Strings(logins)

	out := make([]model.Account, 0, len(logins))
	for _, login := range logins {
		out = append(out, *s.accounts[login].Clone())
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts), nil
}

func (s *Store) Put(ctx context.Context, account *model.Account) error {
	if account == nil || account.Login == "" {
		return apperror.ValidationFailed("login", "account login is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.accounts[account.Login]
	s.accounts[account.Login] = account.Clone()
	if err := s.persist(); err != nil {
		if existed {
			s.accounts[account.Login] = prev
		} else {
			delete(s.accounts, account.Login)
		}
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, login string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.accounts[login]
	if !ok {
		return apperror.UnknownAccount(login)
	}

	delete(s.accounts, login)
	if err := s.persist(); err != nil {
		s.accounts[login] = prev
		return err
	}
	return nil
}

// persist rewrites the whole table. Caller holds s.mu.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(fileFormat(s.accounts), "", "  ")
	if err != nil {
		return fmt.Errorf("accountfile: encoding store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("accountfile: creating %s: %w", dir, err)
	}

	// Back up the previous version before it is replaced.
	if prev, err := os.ReadFile(s.path); err == nil {
		if err := os.WriteFile(s.path+".bak", prev, 0o600); err != nil {
			return fmt.Errorf("accountfile: writing backup: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("accountfile: reading previous store: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".accounts-*.tmp")
	if err != nil {
		return fmt.Errorf("accountfile: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("accountfile: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("accountfile: closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("accountfile: setting permissions: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("accountfile: replacing store: %w", err)
	}
	return nil
}
