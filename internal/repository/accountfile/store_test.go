package accountfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "accounts.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func testAccount(login string) *model.Account {
	now := time.Now()
	return &model.Account{
		ID:              "acc-" + login,
		Login:           login,
		Email:           login + "@normaq.com.br",
		PasswordHash:    "$2a$04$fakefakefakefakefakefakefakefakefakefakefakefakefake",
		PasswordHistory: []string{"P@ss1"},
		FirstLogin:      true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testAccount("maria")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, "maria")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Email != "maria@normaq.com.br" {
		t.Errorf("Email = %q", got.Email)
	}

	// The returned account must not alias the stored one.
	got.PasswordHistory[0] = "mutated"
	again, _ := s.Get(ctx, "maria")
	if again.PasswordHistory[0] != "P@ss1" {
		t.Error("Get() returned an aliased history slice")
	}
}

func TestGetUnknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrUnknownAccount) {
		t.Errorf("Get() error = %v, want ErrUnknownAccount", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Put(ctx, testAccount("maria")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(ctx, testAccount("joao")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	accounts, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("List() returned %d accounts, want 2", len(accounts))
	}
	// List is sorted by login.
	if accounts[0].Login != "joao" || accounts[1].Login != "maria" {
		t.Errorf("List() order = %q, %q", accounts[0].Login, accounts[1].Login)
	}
}

func TestBackupKeepsPreviousVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	ctx := context.Background()

	s, _ := Open(path)
	if err := s.Put(ctx, testAccount("maria")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	// Second mutation: the first version must land in .bak.
	if err := s.Put(ctx, testAccount("joao")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}

	// The backup holds exactly the pre-mutation state: maria, no joao.
	if !strings.Contains(string(backup), `"maria"`) {
		t.Error("backup does not contain the previous account")
	}
	if strings.Contains(string(backup), `"joao"`) {
		t.Error("backup already contains the new account")
	}
}

func TestFailedUpdateKeepsPreviousAccount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	ctx := context.Background()

	s, _ := Open(path)
	if err := s.Put(ctx, testAccount("maria")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// A directory at the backup path makes the next persist fail.
	if err := os.Mkdir(path+".bak", 0o755); err != nil {
		t.Fatalf("blocking backup path: %v", err)
	}

	updated := testAccount("maria")
	updated.Email = "maria.silva@normaq.com.br"
	if err := s.Put(ctx, updated); err == nil {
		t.Fatal("Put() succeeded with the backup path blocked")
	}

	// The previous version must survive the failed update, matching disk.
	got, err := s.Get(ctx, "maria")
	if err != nil {
		t.Fatalf("Get() after failed update: %v", err)
	}
	if got.Email != "maria@normaq.com.br" {
		t.Errorf("Email = %q, want the pre-update value", got.Email)
	}
}

func TestFailedInsertLeavesNoAccount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	ctx := context.Background()

	s, _ := Open(path)
	if err := s.Put(ctx, testAccount("maria")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := os.Mkdir(path+".bak", 0o755); err != nil {
		t.Fatalf("blocking backup path: %v", err)
	}

	if err := s.Put(ctx, testAccount("joao")); err == nil {
		t.Fatal("Put() succeeded with the backup path blocked")
	}
	if _, err := s.Get(ctx, "joao"); !errors.Is(err, apperror.ErrUnknownAccount) {
		t.Errorf("Get() after failed insert = %v, want ErrUnknownAccount", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testAccount("maria")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Delete(ctx, "maria"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "maria"); !errors.Is(err, apperror.ErrUnknownAccount) {
		t.Errorf("Get() after delete = %v, want ErrUnknownAccount", err)
	}
	if err := s.Delete(ctx, "maria"); !errors.Is(err, apperror.ErrUnknownAccount) {
		t.Errorf("Delete() twice = %v, want ErrUnknownAccount", err)
	}
}

func TestOpenCorruptFileQuarantines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seeding corrupt file: %v", err)
	}

	_, err := Open(path)
	if !errors.Is(err, apperror.ErrCorruptStore) {
		t.Fatalf("Open() error = %v, want ErrCorruptStore", err)
	}

	// The corrupt file must be preserved under a quarantine name, and the
	// original path freed for a fresh bootstrap.
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("corrupt file still occupies the store path")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "accounts.json.corrupt-") {
			found = true
		}
	}
	if !found {
		t.Error("corrupt file was not quarantined")
	}
}
