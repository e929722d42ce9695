package auditlog

import (
	"net/http"
	"strings"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/errors"
	"github.com/dalemusser/ninjaprotocol/internal/app/store/audit"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"github.com/dalemusser/ninjaprotocol/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(t *testing.T) (*Handler, *mongo.Database) {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return NewHandler(db, errorsfeature.NewErrorLogger(logger), logger), db
}

func logEvents(t *testing.T, db *mongo.Database, events ...audit.Event) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := audit.New(db)
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
}

func TestList_ResolvesActors(t *testing.T) {
	h, db := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin, err := userstore.New(db).Create(ctx, models.User{LoginID: "sensei", Roles: []string{models.RoleAdministrator}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	logEvents(t, db,
		audit.Event{
			Category:  audit.CategoryAdmin,
			EventType: audit.EventNinjaStatusUpdated,
			ActorID:   &admin.ID,
			Success:   true,
			Details:   map[string]string{"updated": "2"},
		},
		audit.Event{
			Category:      audit.CategoryAdmin,
			EventType:     audit.EventNinjaStatusNonceFailed,
			ActorID:       &admin.ID,
			FailureReason: "nonce verification failed",
		},
	)

	rec := testutil.NewRecorder()
	h.list(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/audit", testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, audit.EventNinjaStatusUpdated)
	rec.AssertContains(t, "<td>sensei</td>")
	rec.AssertContains(t, "updated=2")
	rec.AssertContains(t, "failed: nonce verification failed")
	rec.AssertContains(t, "of 2")
}

func TestList_FiltersByCategory(t *testing.T) {
	h, db := newHandler(t)

	logEvents(t, db,
		audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLogout, Success: true},
		audit.Event{Category: audit.CategoryInstall, EventType: audit.EventInstalled, Success: true},
	)

	rec := testutil.NewRecorder()
	h.list(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/audit?category=install", testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "install / installed")
	rec.AssertNotContains(t, "auth / logout")
}

func TestList_Empty(t *testing.T) {
	h, _ := newHandler(t)

	rec := testutil.NewRecorder()
	h.list(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/audit", testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "No audit events.")
	rec.AssertContains(t, "Page 1 of 1")
	rec.AssertNotContains(t, "Next &raquo;")
}

func TestRoutes_RequireManageOptions(t *testing.T) {
	h, _ := newHandler(t)
	sm, err := auth.NewSessionManager("auditlog-test-session-key-0123456789", "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	router := Routes(h, sm)

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.EditorUser())
	req.Header.Set("Accept", "text/html")
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertRedirect(t, "/forbidden")

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)
}

func TestFilterFromQuery(t *testing.T) {
	f := filterFromQuery("install", "installed", "2026-03-01", "2026-03-02", 3)
	if f.Category != audit.CategoryInstall || f.EventType != audit.EventInstalled {
		t.Errorf("category/event = %q/%q", f.Category, f.EventType)
	}
	if f.Offset != 2*pageSize || f.Limit != pageSize {
		t.Errorf("Offset/Limit = %d/%d", f.Offset, f.Limit)
	}
	if f.StartTime == nil || !f.StartTime.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartTime = %v", f.StartTime)
	}
	if f.EndTime == nil || f.EndTime.Day() != 2 || f.EndTime.Hour() != 23 {
		t.Errorf("EndTime = %v, want end of 2026-03-02", f.EndTime)
	}

	f = filterFromQuery("bogus", "logout", "not-a-date", "", 1)
	if f.Category != "" {
		t.Errorf("unknown category kept: %q", f.Category)
	}
	if f.EventType != audit.EventLogout {
		t.Errorf("EventType = %q, want logout with no category", f.EventType)
	}
	if f.StartTime != nil || f.EndTime != nil {
		t.Error("bad dates should be ignored")
	}

	// An event type outside the chosen category is dropped.
	f = filterFromQuery("auth", "installed", "", "", 1)
	if f.EventType != "" {
		t.Errorf("EventType = %q, want empty", f.EventType)
	}
}

func TestPageQuery(t *testing.T) {
	got := pageQuery("auth", "", "2026-03-01", "", 2)
	if got != "?category=auth&page=2&start_date=2026-03-01" {
		t.Errorf("pageQuery() = %q", got)
	}
}

func TestDetailPairs(t *testing.T) {
	got := strings.Join(detailPairs(map[string]string{"seeded": "3", "failed": "0", "scanned": "3"}), ",")
	if got != "failed=0,scanned=3,seeded=3" {
		t.Errorf("detailPairs() = %q", got)
	}
	if detailPairs(nil) != nil {
		t.Error("detailPairs(nil) should be nil")
	}
}
