// internal/app/features/login/login.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The integer _id that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"fmt"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/errors"
	"github.com/dalemusser/ninjaprotocol/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auditlog"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/authutil"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/inputval"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgUnavailable        = "Service temporarily unavailable. Please try again."
	msgLockedOut          = "Too many failed attempts. Try again in %s."
)

// Handler provides login handlers.
type Handler struct {
	userStore   *userstore.Store
	limiter     *ratelimit.Store
	sessionMgr  *auth.SessionManager
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

// NewHandler creates a new login Handler. A nil limiter disables throttling.
func NewHandler(
	db *mongo.Database,
	limiter *ratelimit.Store,
	sessionMgr *auth.SessionManager,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userStore:   userstore.New(db),
		limiter:     limiter,
		sessionMgr:  sessionMgr,
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// LoginVM is the view model for the login page.
type LoginVM struct {
	viewdata.BaseVM
	Error     string
	LoginID   string
	ReturnURL string
}

// loginInput is the posted login form.
type loginInput struct {
	LoginID  string `validate:"required,max=254" label:"Login ID"`
	Password string `validate:"required,max=72" label:"Password"`
}

// Routes returns a chi.Router with login routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showLogin)
	r.Post("/", h.handleLogin)
	return r
}

// showLogin displays the login form.
func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, urlutil.SafeReturn(query.Get(r, "return"), "", "/"), http.StatusSeeOther)
		return
	}
	h.render(w, r, "", "", query.Get(r, "return"))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, errMsg, loginID, returnURL string) {
	vm := LoginVM{
		BaseVM:    viewdata.New(r),
		Error:     errMsg,
		LoginID:   loginID,
		ReturnURL: returnURL,
	}
	vm.Title = "Login"
	templates.Render(w, r, "login/index", vm)
}

// handleLogin checks the password and starts a session.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errLog.Log(r, "failed to parse form", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	input := loginInput{
		LoginID:  r.FormValue("login_id"),
		Password: r.FormValue("password"),
	}
	returnURL := r.FormValue("return")

	if res := inputval.Validate(input); res.HasErrors() {
		h.render(w, r, res.First(), input.LoginID, returnURL)
		return
	}

	if msg, locked := h.lockedOut(r, input.LoginID); locked {
		h.render(w, r, msg, input.LoginID, returnURL)
		return
	}

	user, err := h.userStore.GetByLoginID(r.Context(), input.LoginID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Spend the same bcrypt time as a real check.
			authutil.BurnCompare(input.Password)
			h.auditLogger.LoginFailedUserNotFound(r.Context(), r, input.LoginID)
			h.renderFailure(w, r, input.LoginID, returnURL)
			return
		}
		h.errLog.Log(r, "database error during login lookup", err)
		h.render(w, r, msgUnavailable, input.LoginID, returnURL)
		return
	}

	if user.PasswordHash == nil || !authutil.CheckPassword(input.Password, *user.PasswordHash) {
		h.auditLogger.LoginFailedWrongPassword(r.Context(), r, user.ID, user.LoginID)
		h.renderFailure(w, r, input.LoginID, returnURL)
		return
	}

	if h.limiter != nil {
		if err := h.limiter.Clear(r.Context(), input.LoginID); err != nil {
			h.logger.Warn("failed to clear login throttle", zap.String("login_id", user.LoginID), zap.Error(err))
		}
	}

	if err := h.sessionMgr.CreateSession(w, r, user.ID); err != nil {
		h.errLog.Log(r, "failed to create session", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.auditLogger.LoginSuccess(r.Context(), r, user.ID, user.LoginID)
	h.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("login_id", user.LoginID))

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", "/"), http.StatusSeeOther)
}

// lockedOut reports whether loginID is currently throttled. Storage errors fail open.
func (h *Handler) lockedOut(r *http.Request, loginID string) (string, bool) {
	if h.limiter == nil {
		return "", false
	}
	d, err := h.limiter.Check(r.Context(), loginID)
	if err != nil {
		h.logger.Warn("login throttle check failed", zap.Error(err))
		return "", false
	}
	if d.Allowed {
		return "", false
	}
	until := time.Now().Add(h.limiter.Policy().Lockout)
	if d.LockedUntil != nil {
		until = *d.LockedUntil
	}
	h.auditLogger.LoginLockedOut(r.Context(), r, loginID, until)
	return lockoutMessage(time.Until(until)), true
}

// renderFailure counts the failure against the login ID and re-renders the form.
func (h *Handler) renderFailure(w http.ResponseWriter, r *http.Request, loginID, returnURL string) {
	if h.limiter != nil {
		d, err := h.limiter.RecordFailure(r.Context(), loginID)
		if err != nil {
			h.logger.Warn("failed to record login failure", zap.Error(err))
		} else if !d.Allowed && d.LockedUntil != nil {
			h.auditLogger.LoginLockedOut(r.Context(), r, loginID, *d.LockedUntil)
			h.render(w, r, lockoutMessage(time.Until(*d.LockedUntil)), loginID, returnURL)
			return
		}
	}
	h.render(w, r, msgInvalidCredentials, loginID, returnURL)
}

func lockoutMessage(wait time.Duration) string {
	minutes := int(wait.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return fmt.Sprintf(msgLockedOut, "a minute")
	}
	return fmt.Sprintf(msgLockedOut, fmt.Sprintf("%d minutes", minutes))
}
