// internal/app/features/home/home.go
package home

import (
	"context"
	"net/http"

	usermetastore "github.com/dalemusser/ninjaprotocol/internal/app/store/usermeta"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/status"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/timeouts"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/viewdata"
	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides home page handlers.
type Handler struct {
	users  *userstore.Store
	meta   *usermetastore.Store
	logger *zap.Logger
}

// NewHandler creates a new home Handler.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		users:  userstore.New(db),
		meta:   usermetastore.New(db),
		logger: logger,
	}
}

// StatusCount is one line of the status summary.
type StatusCount struct {
	Label string
	Count int64
}

// HomeVM is the view model for the home page.
type HomeVM struct {
	viewdata.BaseVM
	UserCount int64
	Summary   []StatusCount

	// Defaulted users have no recognized stored status and are counted
	// under DefaultLabel, as the admin page shows them.
	Defaulted    int64
	DefaultLabel string
}

// Routes returns a chi.Router with home routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Index)
	return r
}

// Index renders the home page. Administrators also see how many users
// hold each ninja status.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	vm := HomeVM{BaseVM: viewdata.New(r)}
	vm.Title = "Home"

	if user, ok := auth.CurrentUser(r); ok && user.Can(models.CapManageOptions) {
		if err := h.loadSummary(r.Context(), &vm); err != nil {
			h.logger.Warn("failed to load ninja status summary", zap.Error(err))
			vm.Summary, vm.Defaulted = nil, 0
		}
	}

	templates.Render(w, r, "home/index", vm)
}

func (h *Handler) loadSummary(ctx context.Context, vm *HomeVM) error {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), h.logger, "ninja status summary")
	defer cancel()

	ids, err := h.users.ListIDs(ctx)
	if err != nil {
		return err
	}
	vm.UserCount = int64(len(ids))

	counts := make(map[string]int64, len(status.All()))
	var stored int64
	for _, opt := range status.All() {
		n, err := h.meta.CountByValue(ctx, status.MetaKey, opt.Value, ids)
		if err != nil {
			return err
		}
		counts[opt.Value] = n
		stored += n
	}

	vm.Defaulted = vm.UserCount - stored
	vm.DefaultLabel = status.Label(status.Default())
	counts[status.Default()] += vm.Defaulted

	for _, opt := range status.All() {
		vm.Summary = append(vm.Summary, StatusCount{Label: opt.Label, Count: counts[opt.Value]})
	}
	return nil
}
