package seeding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dalemusser/ninjaprotocol/internal/app/store/audit"
	installstore "github.com/dalemusser/ninjaprotocol/internal/app/store/installs"
	usermetastore "github.com/dalemusser/ninjaprotocol/internal/app/store/usermeta"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auditlog"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/authutil"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/protocol"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/status"
	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"github.com/dalemusser/ninjaprotocol/internal/testutil"
	"go.uber.org/zap"
)

func TestActivate_SeedsOnlyOnFirstInstall(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	meta := usermetastore.New(db)
	for _, login := range []string{"kage", "kemuri", "kaze"} {
		if _, err := users.Create(ctx, models.User{LoginID: login}); err != nil {
			t.Fatalf("Create(%q) error = %v", login, err)
		}
	}
	// User 1 already has a status from before.
	if _, err := meta.Set(ctx, 1, status.MetaKey, status.Active); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	svc := protocol.New(users, meta, nil, zap.NewNop())
	installs := installstore.New(db)

	first, err := Activate(ctx, installs, svc, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if !first {
		t.Error("first Activate() = false, want true")
	}

	want := map[int64]string{1: status.Active, 2: status.Pending, 3: status.Pending}
	for id, w := range want {
		v, _, err := meta.Get(ctx, id, status.MetaKey)
		if err != nil {
			t.Fatalf("Get(%d) error = %v", id, err)
		}
		if v != w {
			t.Errorf("user %d = %q, want %q", id, v, w)
		}
	}

	// A user added later is not seeded by a restart.
	if _, err := users.Create(ctx, models.User{LoginID: "late"}); err != nil {
		t.Fatalf("Create(late) error = %v", err)
	}
	again, err := Activate(ctx, installs, svc, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("second Activate() error = %v", err)
	}
	if again {
		t.Error("second Activate() = true, want false")
	}
	if _, ok, _ := meta.Get(ctx, 4, status.MetaKey); ok {
		t.Error("restart seeded a user added after install")
	}
}

type stubInstaller struct {
	first bool
	err   error
}

func (s stubInstaller) MarkInstalled(ctx context.Context, name string) (bool, error) {
	return s.first, s.err
}

type stubSeeder struct {
	calls int
	rep   protocol.SeedReport
	err   error
}

func (s *stubSeeder) Seed(ctx context.Context) (protocol.SeedReport, error) {
	s.calls++
	return s.rep, s.err
}

func TestActivate_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	seeder := &stubSeeder{}
	if _, err := Activate(ctx, stubInstaller{err: boom}, seeder, nil, zap.NewNop()); !errors.Is(err, boom) {
		t.Errorf("install error = %v, want boom", err)
	}
	if seeder.calls != 0 {
		t.Error("seeder ran after install record failed")
	}

	seeder = &stubSeeder{err: boom}
	first, err := Activate(ctx, stubInstaller{first: true}, seeder, nil, zap.NewNop())
	if !first || !errors.Is(err, boom) {
		t.Errorf("Activate() = (%v, %v), want (true, boom)", first, err)
	}
}

func TestActivate_InterruptedSeedIsAudited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := audit.New(db)
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{})
	seeder := &stubSeeder{
		rep: protocol.SeedReport{Scanned: 1, Seeded: 1},
		err: fmt.Errorf("seed interrupted after 1 of 3 users: %w", context.DeadlineExceeded),
	}

	first, err := Activate(ctx, installstore.New(db), seeder, logger, zap.NewNop())
	if !first || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Activate() = (%v, %v), want (true, deadline exceeded)", first, err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{EventType: audit.EventNinjaStatusSeed})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("seed events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Success {
		t.Error("interrupted seed recorded as success")
	}
	if e.Details["scanned"] != "1" || e.Details["seeded"] != "1" {
		t.Errorf("details = %v, want the partial report", e.Details)
	}
	if !strings.Contains(e.FailureReason, "interrupted after 1 of 3") {
		t.Errorf("FailureReason = %q", e.FailureReason)
	}
}

func TestActivate_AuditsAfterDeadline(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seeder := &cancelingSeeder{cancel: cancel}
	if _, err := Activate(ctx, installstore.New(db), seeder, logger, zap.NewNop()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Activate() error = %v, want context.Canceled", err)
	}

	qctx, qcancel := testutil.TestContext()
	defer qcancel()
	events, err := store.Query(qctx, audit.QueryFilter{EventType: audit.EventNinjaStatusSeed})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("seed events = %d, want 1 even though the context ended", len(events))
	}
}

// cancelingSeeder ends the context partway through, as a seed timeout would.
type cancelingSeeder struct {
	cancel context.CancelFunc
}

func (s *cancelingSeeder) Seed(ctx context.Context) (protocol.SeedReport, error) {
	s.cancel()
	return protocol.SeedReport{Scanned: 2, Seeded: 2}, fmt.Errorf("seed interrupted after 2 of 5 users: %w", ctx.Err())
}

func TestEnsureAdmin_Creates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	id, err := EnsureAdmin(ctx, users, AdminSpec{
		LoginID:  "Sensei",
		Password: "dojo-master-1",
		Email:    "sensei@example.com",
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}

	u, err := users.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !u.HasCapability(models.CapManageOptions) {
		t.Error("seeded admin lacks manage_options")
	}
	if u.PasswordHash == nil || !authutil.CheckPassword("dojo-master-1", *u.PasswordHash) {
		t.Error("seeded admin password does not verify")
	}

	// Idempotent
	again, err := EnsureAdmin(ctx, users, AdminSpec{LoginID: "sensei", Password: "dojo-master-1"}, nil, zap.NewNop())
	if err != nil || again != id {
		t.Errorf("second EnsureAdmin() = (%d, %v), want (%d, nil)", again, err, id)
	}
	if ids, _ := users.ListIDs(ctx); len(ids) != 1 {
		t.Errorf("ListIDs() = %v, want one user", ids)
	}
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	existing, err := users.Create(ctx, models.User{LoginID: "editor1", Roles: []string{models.RoleEditor}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// No password needed to promote.
	id, err := EnsureAdmin(ctx, users, AdminSpec{LoginID: "editor1"}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	if id != existing.ID {
		t.Errorf("EnsureAdmin() id = %d, want %d", id, existing.ID)
	}
	u, _ := users.GetByID(ctx, id)
	if !u.HasCapability(models.CapManageOptions) {
		t.Error("promoted user lacks manage_options")
	}
	if !u.HasCapability(models.CapEditPosts) {
		t.Error("promotion dropped existing roles")
	}
}

func TestEnsureAdmin_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	if id, err := EnsureAdmin(ctx, users, AdminSpec{}, nil, zap.NewNop()); id != 0 || err != nil {
		t.Errorf("blank admin = (%d, %v), want (0, nil)", id, err)
	}

	tests := []AdminSpec{
		{LoginID: "new-admin", Password: "short"},
		{LoginID: "new-admin", Password: "password1"},
		{LoginID: "new-admin", Password: "long-enough-pass", Email: "not-an-email"},
	}
	for _, adm := range tests {
		if _, err := EnsureAdmin(ctx, users, adm, nil, zap.NewNop()); !errors.Is(err, ErrInvalidAdmin) {
			t.Errorf("EnsureAdmin(%+v) error = %v, want ErrInvalidAdmin", adm, err)
		}
	}
	if ids, _ := users.ListIDs(ctx); len(ids) != 0 {
		t.Errorf("invalid specs created users %v", ids)
	}
}

func TestEnsureAdmin_ErrorMessages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	_, err := EnsureAdmin(ctx, users, AdminSpec{LoginID: "new-admin", Password: "short"}, nil, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), authutil.PasswordRules()) {
		t.Errorf("weak password error = %v, want the password rules", err)
	}

	long := strings.Repeat("x", 255)
	_, err = EnsureAdmin(ctx, users, AdminSpec{LoginID: long, Email: long}, nil, zap.NewNop())
	if err == nil {
		t.Fatal("oversized spec accepted")
	}
	for _, want := range []string{"Seed admin login must be at most 254", "Seed admin email must be at most 254"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, want it to mention %q", err, want)
		}
	}
}
