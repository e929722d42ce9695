package protocol

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/dalemusser/ninjaprotocol/internal/app/system/nonce"
	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
)

// memDirectory is an in-memory Directory.
type memDirectory struct {
	users   []models.User
	listErr error
	calls   int
}

func (d *memDirectory) List(ctx context.Context) ([]models.User, error) {
	d.calls++
	if d.listErr != nil {
		return nil, d.listErr
	}
	out := make([]models.User, len(d.users))
	copy(out, d.users)
	return out, nil
}

func (d *memDirectory) ListIDs(ctx context.Context) ([]int64, error) {
	d.calls++
	if d.listErr != nil {
		return nil, d.listErr
	}
	ids := make([]int64, 0, len(d.users))
	for _, u := range d.users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// memMeta is an in-memory AttributeStore with per-user failure injection.
type memMeta struct {
	values   map[string]string
	failSet  map[int64]bool
	failGet  map[int64]bool
	gets     int
	sets     int
	afterSet func(id int64)
}

func newMemMeta() *memMeta {
	return &memMeta{
		values:  map[string]string{},
		failSet: map[int64]bool{},
		failGet: map[int64]bool{},
	}
}

var errStore = errors.New("store unavailable")

func metaKey(id int64, key string) string { return fmt.Sprintf("%d/%s", id, key) }

func (m *memMeta) Get(ctx context.Context, id int64, key string) (string, bool, error) {
	m.gets++
	if m.failGet[id] {
		return "", false, errStore
	}
	v, ok := m.values[metaKey(id, key)]
	return v, ok, nil
}

func (m *memMeta) Set(ctx context.Context, id int64, key, value string) (bool, error) {
	m.sets++
	if m.failSet[id] {
		return false, errStore
	}
	k := metaKey(id, key)
	if old, ok := m.values[k]; ok && old == value {
		return false, nil
	}
	m.values[k] = value
	if m.afterSet != nil {
		m.afterSet(id)
	}
	return true, nil
}

func (m *memMeta) get(id int64) string {
	return m.values[metaKey(id, "ninja_status")]
}

func (m *memMeta) snapshot() []string {
	out := make([]string, 0, len(m.values))
	for k, v := range m.values {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// fakeActor grants manage_options when admin is true.
type fakeActor struct {
	admin   bool
	subject string
}

func (a fakeActor) Can(capability string) bool {
	return a.admin && capability == models.CapManageOptions
}

func (a fakeActor) Subject() string { return a.subject }

var (
	admin  = fakeActor{admin: true, subject: "1:session-one"}
	admin2 = fakeActor{admin: true, subject: "2:session-two"}
	reader = fakeActor{admin: false, subject: "3:session-three"}
)

func threeUsers() []models.User {
	return []models.User{
		{ID: 1, LoginID: "kage", Email: "kage@example.com", Roles: []string{models.RoleAdministrator}},
		{ID: 2, LoginID: "kemuri", Email: "kemuri@example.com", Roles: []string{models.RoleEditor, models.RoleAuthor}},
		{ID: 3, LoginID: "kaze", Email: "kaze@example.com", Roles: []string{models.RoleSubscriber}},
	}
}

type fixture struct {
	svc    *Service
	dir    *memDirectory
	meta   *memMeta
	tokens *nonce.Issuer
}

func newFixture(t *testing.T, users []models.User) fixture {
	t.Helper()
	tokens, err := nonce.New("protocol-test-key-0123456789", time.Hour)
	if err != nil {
		t.Fatalf("nonce.New() error = %v", err)
	}
	dir := &memDirectory{users: users}
	meta := newMemMeta()
	return fixture{
		svc:    New(dir, meta, tokens, nil),
		dir:    dir,
		meta:   meta,
		tokens: tokens,
	}
}

func (f fixture) token(t *testing.T, a Actor) string {
	t.Helper()
	tok, err := f.tokens.Issue(Action, a.Subject())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}
