package ninjaprotocol

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/errors"
	usermetastore "github.com/dalemusser/ninjaprotocol/internal/app/store/usermeta"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/nonce"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/protocol"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/status"
	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"github.com/dalemusser/ninjaprotocol/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type fixture struct {
	db     *mongo.Database
	h      *Handler
	tokens *nonce.Issuer
	meta   *usermetastore.Store
}

func newFixture(t *testing.T, logins ...string) *fixture {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	for _, login := range logins {
		if _, err := users.Create(ctx, models.User{
			LoginID: login,
			Email:   login + "@example.com",
			Roles:   []string{models.RoleSubscriber},
		}); err != nil {
			t.Fatalf("Create(%q) error = %v", login, err)
		}
	}

	tokens, err := nonce.New("handler-test-nonce-key-0123456789", time.Hour)
	if err != nil {
		t.Fatalf("nonce.New() error = %v", err)
	}
	logger := zap.NewNop()
	return &fixture{
		db:     db,
		h:      NewHandler(db, tokens, errorsfeature.NewErrorLogger(logger), nil, "", logger),
		tokens: tokens,
		meta:   usermetastore.New(db),
	}
}

func (f *fixture) token(t *testing.T, u testutil.TestUser) string {
	t.Helper()
	tok, err := f.tokens.Issue(protocol.Action, u.SessionUser().Subject())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

func (f *fixture) stored(t *testing.T, id int64) (string, bool) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	v, ok, err := f.meta.Get(ctx, id, status.MetaKey)
	if err != nil {
		t.Fatalf("Get(%d) error = %v", id, err)
	}
	return v, ok
}

func (f *fixture) post(form url.Values, u testutil.TestUser) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.h.Submit(rec, testutil.WithCSRFToken(testutil.NewFormRequest(Path, form, u)))
	return rec
}

func TestShow_ListsUsersWithDefaultStatus(t *testing.T) {
	f := newFixture(t, "kage", "kemuri")

	rec := testutil.NewRecorder()
	f.h.Show(rec, testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, Path, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, DefaultTitle)
	rec.AssertContains(t, "kemuri@example.com")
	rec.AssertContains(t, `name="ninja_status[1]"`)
	rec.AssertContains(t, `name="ninja_status[2]"`)
	rec.AssertContains(t, `value="pending_ninja" selected`)
	rec.AssertContains(t, `name="ninja_protocol_nonce"`)
	rec.AssertNotContains(t, "No users found.")
	rec.AssertNotContains(t, `class="notice`)
}

func TestShow_Empty(t *testing.T) {
	f := newFixture(t)

	rec := testutil.NewRecorder()
	f.h.Show(rec, testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, Path, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "No users found.")
}

func TestShow_ForbiddenWithoutCapability(t *testing.T) {
	f := newFixture(t, "kage")

	rec := testutil.NewRecorder()
	f.h.Show(rec, testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, Path, testutil.EditorUser()))

	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, msgForbidden)
	rec.AssertNotContains(t, "kage@example.com")
}

func TestSubmit_UpdatesAndCounts(t *testing.T) {
	f := newFixture(t, "kage", "kemuri", "kaze")
	admin := testutil.AdminUser()

	rec := f.post(url.Values{
		FieldNonce:        {f.token(t, admin)},
		"ninja_status[1]": {status.Active},
		"ninja_status[2]": {status.Inactive},
		"ninja_status[3]": {"super_ninja"},
	}, admin)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "2 user(s) ninja status updated successfully.")
	rec.AssertContains(t, "notice-success")

	if v, _ := f.stored(t, 1); v != status.Active {
		t.Errorf("user 1 = %q, want %q", v, status.Active)
	}
	if v, _ := f.stored(t, 2); v != status.Inactive {
		t.Errorf("user 2 = %q, want %q", v, status.Inactive)
	}
	if _, ok := f.stored(t, 3); ok {
		t.Error("invalid value was stored for user 3")
	}

	// Same values again: nothing changes.
	rec = f.post(url.Values{
		FieldNonce:        {f.token(t, admin)},
		"ninja_status[1]": {status.Active},
		"ninja_status[2]": {status.Inactive},
	}, admin)
	rec.AssertContains(t, "No ninja status changes were made or saved, or an error occurred.")
	rec.AssertContains(t, "notice-info")
}

func TestSubmit_NestedKeyDoesNotReachUser(t *testing.T) {
	f := newFixture(t, "kage", "kemuri")
	admin := testutil.AdminUser()

	rec := f.post(url.Values{
		FieldNonce:              {f.token(t, admin)},
		"ninja_status[2][evil]": {status.Active},
		"ninja_status[1]":       {status.Inactive},
	}, admin)

	rec.AssertContains(t, "1 user(s) ninja status updated successfully.")
	if _, ok := f.stored(t, 2); ok {
		t.Error("nested key updated user 2")
	}
	if v, _ := f.stored(t, 1); v != status.Inactive {
		t.Errorf("user 1 = %q, want %q", v, status.Inactive)
	}
}

func TestSubmit_BadToken(t *testing.T) {
	f := newFixture(t, "kage")
	admin := testutil.AdminUser()

	// A token issued to another session does not verify.
	other := testutil.AdminUser()
	other.Token = "some-other-session"

	rec := f.post(url.Values{
		FieldNonce:        {f.token(t, other)},
		"ninja_status[1]": {status.Active},
	}, admin)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Nonce verification failed. Please try again.")
	rec.AssertContains(t, "notice-error")
	rec.AssertContains(t, `name="ninja_status[1]"`)
	if _, ok := f.stored(t, 1); ok {
		t.Error("status written despite failed token")
	}
}

func TestSubmit_NoTokenIsPageView(t *testing.T) {
	f := newFixture(t, "kage")

	rec := f.post(url.Values{"ninja_status[1]": {status.Active}}, testutil.AdminUser())

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertNotContains(t, `class="notice`)
	if _, ok := f.stored(t, 1); ok {
		t.Error("status written without token")
	}
}

func TestSubmit_EmptyMappingNoNotice(t *testing.T) {
	f := newFixture(t, "kage")
	admin := testutil.AdminUser()

	rec := f.post(url.Values{FieldNonce: {f.token(t, admin)}}, admin)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertNotContains(t, `class="notice`)
}

func TestSubmit_UnauthorizedWritesNothing(t *testing.T) {
	f := newFixture(t, "kage")
	editor := testutil.EditorUser()

	rec := f.post(url.Values{
		FieldNonce:        {f.token(t, editor)},
		"ninja_status[1]": {status.Active},
	}, editor)

	rec.AssertStatus(t, http.StatusForbidden)
	if _, ok := f.stored(t, 1); ok {
		t.Error("status written by caller without manage_options")
	}
}

func TestRoutes_AnonymousRedirectsToLogin(t *testing.T) {
	f := newFixture(t)
	sm, err := auth.NewSessionManager("handler-test-session-key-0123456789", "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	Routes(f.h, sm).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestParseSubmission(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		wantToken bool
		token     string
		statuses  map[string]string
	}{
		{
			name: "no fields",
			form: url.Values{},
		},
		{
			name:      "empty token still counts as present",
			form:      url.Values{FieldNonce: {""}},
			wantToken: true,
		},
		{
			name: "nested brackets are dropped",
			form: url.Values{
				"ninja_status[2][evil]": {status.Active},
				"ninja_status[[3]":      {status.Active},
				"ninja_status[4]]":      {status.Active},
				"ninja_status[5]":       {status.Inactive},
			},
			statuses: map[string]string{"5": status.Inactive},
		},
		{
			name: "mapping entries",
			form: url.Values{
				FieldNonce:         {"tok"},
				"ninja_status[5]":  {status.Active},
				"ninja_status[x]":  {status.Inactive},
				"ninja_status[]":   {status.Pending},
				"ninja_status":     {status.Active},
				"other_field[5]":   {status.Active},
				"ninja_status[7]":  {status.Active, status.Inactive},
				"ninja_status[-3]": {status.Pending},
			},
			wantToken: true,
			token:     "tok",
			statuses: map[string]string{
				"5":  status.Active,
				"x":  status.Inactive,
				"":   status.Pending,
				"7":  status.Inactive,
				"-3": status.Pending,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := parseSubmission(tt.form)
			if sub.HasToken != tt.wantToken || sub.Token != tt.token {
				t.Errorf("token = (%v, %q), want (%v, %q)", sub.HasToken, sub.Token, tt.wantToken, tt.token)
			}
			if tt.statuses == nil {
				if sub.Statuses != nil {
					t.Errorf("Statuses = %v, want nil", sub.Statuses)
				}
				return
			}
			if len(sub.Statuses) != len(tt.statuses) {
				t.Fatalf("Statuses = %v, want %v", sub.Statuses, tt.statuses)
			}
			for k, v := range tt.statuses {
				if sub.Statuses[k] != v {
					t.Errorf("Statuses[%q] = %q, want %q", k, sub.Statuses[k], v)
				}
			}
		})
	}
}
