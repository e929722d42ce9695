package home

import (
	"net/http"
	"testing"

	usermetastore "github.com/dalemusser/ninjaprotocol/internal/app/store/usermeta"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/status"
	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"github.com/dalemusser/ninjaprotocol/internal/testutil"
	"go.uber.org/zap"
)

func TestRoutes(t *testing.T) {
	db := testutil.SetupTestDB(t)

	h := NewHandler(db, zap.NewNop())
	if Routes(h) == nil {
		t.Fatal("Routes() returned nil")
	}
}

func TestIndex_Anonymous(t *testing.T) {
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	h := NewHandler(db, zap.NewNop())

	req := testutil.WithCSRFToken(testutil.NewRequest(http.MethodGet, "/"))
	rec := testutil.NewRecorder()
	h.Index(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "to continue")
	rec.AssertNotContains(t, "Ninja status")
}

func TestIndex_AdminSeesSummary(t *testing.T) {
	testutil.MustBootTemplates(t)
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
	if _, err := meta.Set(ctx, 1, status.MetaKey, status.Active); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := meta.Set(ctx, 2, status.MetaKey, status.Active); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	h := NewHandler(db, zap.NewNop())
	req := testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/", testutil.AdminUser())
	rec := testutil.NewRecorder()
	h.Index(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Users: 3")
	rec.AssertContains(t, "Active Ninja: 2")
	rec.AssertContains(t, "Pending Ninja: 1")
	rec.AssertContains(t, "Pending Ninja includes 1 user(s) without a recognized status.")
}

func TestIndex_SummaryIgnoresOrphanedStatuses(t *testing.T) {
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	meta := usermetastore.New(db)
	for _, login := range []string{"kage", "kemuri"} {
		if _, err := users.Create(ctx, models.User{LoginID: login}); err != nil {
			t.Fatalf("Create(%q) error = %v", login, err)
		}
	}
	if _, err := meta.Set(ctx, 1, status.MetaKey, status.Inactive); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// Left behind by users that no longer exist.
	for _, id := range []int64{998, 999} {
		if _, err := meta.Set(ctx, id, status.MetaKey, status.Active); err != nil {
			t.Fatalf("Set(%d) error = %v", id, err)
		}
	}

	h := NewHandler(db, zap.NewNop())
	req := testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/", testutil.AdminUser())
	rec := testutil.NewRecorder()
	h.Index(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Users: 2")
	rec.AssertContains(t, "Active Ninja: 0")
	rec.AssertContains(t, "Inactive Ninja: 1")
	rec.AssertContains(t, "Pending Ninja: 1")
	rec.AssertContains(t, "Pending Ninja includes 1 user(s) without a recognized status.")
}

func TestIndex_SummaryCountsUnknownValuesAsPending(t *testing.T) {
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	meta := usermetastore.New(db)
	for _, login := range []string{"kage", "kemuri"} {
		if _, err := users.Create(ctx, models.User{LoginID: login}); err != nil {
			t.Fatalf("Create(%q) error = %v", login, err)
		}
	}
	if _, err := meta.Set(ctx, 1, status.MetaKey, status.Pending); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := meta.Set(ctx, 2, status.MetaKey, "retired_ninja"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	h := NewHandler(db, zap.NewNop())
	req := testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/", testutil.AdminUser())
	rec := testutil.NewRecorder()
	h.Index(rec, req)

	rec.AssertContains(t, "Pending Ninja: 2")
	rec.AssertContains(t, "Pending Ninja includes 1 user(s) without a recognized status.")
}

func TestIndex_EditorSeesNoSummary(t *testing.T) {
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	h := NewHandler(db, zap.NewNop())

	req := testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/", testutil.EditorUser())
	rec := testutil.NewRecorder()
	h.Index(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "editor")
	rec.AssertNotContains(t, "Ninja status")
}
