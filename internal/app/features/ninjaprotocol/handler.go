// internal/app/features/ninjaprotocol/handler.go
package ninjaprotocol

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	errorsfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/errors"
	usermetastore "github.com/dalemusser/ninjaprotocol/internal/app/store/usermeta"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auditlog"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/protocol"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/status"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/timeouts"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Form field names.
const (
	FieldNonce  = "ninja_protocol_nonce"
	FieldStatus = "ninja_status"
)

// DefaultTitle is used when no page title is configured.
const DefaultTitle = "Ninja Users Protocol"

const msgForbidden = "You do not have sufficient permissions to access this page."

// Handler serves the ninja users protocol admin page.
type Handler struct {
	svc         *protocol.Service
	errHandler  *errorsfeature.Handler
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	title       string
	logger      *zap.Logger
}

// NewHandler creates a Handler backed by the users and user_meta collections.
func NewHandler(
	db *mongo.Database,
	tokens protocol.Tokens,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	title string,
	logger *zap.Logger,
) *Handler {
	return NewHandlerWithService(
		protocol.New(userstore.New(db), usermetastore.New(db), tokens, logger),
		errLog, auditLogger, title, logger,
	)
}

// NewHandlerWithService creates a Handler around an existing Service.
func NewHandlerWithService(
	svc *protocol.Service,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	title string,
	logger *zap.Logger,
) *Handler {
	if title == "" {
		title = DefaultTitle
	}
	return &Handler{
		svc:         svc,
		errHandler:  errorsfeature.NewHandler(),
		errLog:      errLog,
		auditLogger: auditLogger,
		title:       title,
		logger:      logger,
	}
}

// Total is one status count shown above the table.
type Total struct {
	Label string
	Count int
}

// PageVM is the view model for the admin page.
type PageVM struct {
	viewdata.BaseVM
	Notice     *protocol.Notice
	Rows       []protocol.Row
	Empty      bool
	Token      string
	NonceField string
	Totals     []Total
}

// Show renders the page. It is the GET handler.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, nil)
}

// Submit applies the posted statuses and renders the page with the
// resulting notice.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errLog.Log(r, "failed to parse ninja status form", err)
		h.errHandler.BadRequest(w, r)
		return
	}

	actor, user := currentActor(r)
	sub := parseSubmission(r.PostForm)
	sub.Actor = actor

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.logger, "ninja status submit")
	defer cancel()

	notice := h.svc.HandleSubmission(ctx, sub)
	if notice != nil && user != nil {
		switch notice.Kind {
		case protocol.NoticeError:
			h.auditLogger.NinjaStatusNonceFailed(r.Context(), r, user.ID)
		default:
			h.auditLogger.NinjaStatusUpdated(r.Context(), r, user.ID, notice.Count)
		}
	}

	h.render(w, r, notice)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, notice *protocol.Notice) {
	actor, _ := currentActor(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.logger, "ninja users protocol render")
	defer cancel()

	page, err := h.svc.Render(ctx, actor)
	if err != nil {
		if errors.Is(err, protocol.ErrForbidden) {
			h.errHandler.ForbiddenMessage(w, r, msgForbidden)
			return
		}
		h.errLog.Log(r, "failed to render ninja users protocol", err)
		h.errHandler.InternalError(w, r)
		return
	}

	vm := PageVM{
		BaseVM:     viewdata.New(r),
		Notice:     notice,
		Rows:       page.Rows,
		Empty:      page.Empty(),
		Token:      page.Token,
		NonceField: FieldNonce,
	}
	vm.Title = h.title
	for _, opt := range status.All() {
		vm.Totals = append(vm.Totals, Total{Label: opt.Label, Count: page.Totals[opt.Value]})
	}

	templates.Render(w, r, "ninjaprotocol/index", vm)
}

// currentActor returns the signed-in user as a protocol.Actor. The actor
// is a nil interface for anonymous requests.
func currentActor(r *http.Request) (protocol.Actor, *auth.SessionUser) {
	user, ok := auth.CurrentUser(r)
	if !ok || user == nil {
		return nil, nil
	}
	return user, user
}

// parseSubmission reads the token and the ninja_status[<id>] mapping from
// a posted form. Repeated fields keep their last value. Nested keys such as
// ninja_status[2][x] are not part of the mapping and are dropped.
func parseSubmission(form url.Values) protocol.Submission {
	var sub protocol.Submission

	if vals, ok := form[FieldNonce]; ok {
		sub.HasToken = true
		if len(vals) > 0 {
			sub.Token = vals[len(vals)-1]
		}
	}

	prefix := FieldStatus + "["
	for key, vals := range form {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, "]") || len(vals) == 0 {
			continue
		}
		id := key[len(prefix) : len(key)-1]
		if strings.ContainsAny(id, "[]") {
			continue
		}
		if sub.Statuses == nil {
			sub.Statuses = make(map[string]string)
		}
		sub.Statuses[id] = vals[len(vals)-1]
	}
	return sub
}
