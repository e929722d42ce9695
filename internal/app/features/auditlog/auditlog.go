// internal/app/features/auditlog/auditlog.go
package auditlog

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/errors"
	"github.com/dalemusser/ninjaprotocol/internal/app/store/audit"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/viewdata"
	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Path is where the audit log is mounted.
const Path = "/audit"

const (
	pageSize   = 50
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05 UTC"
)

// Handler provides audit log handlers.
type Handler struct {
	auditStore *audit.Store
	userStore  *userstore.Store
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a new audit log Handler.
func NewHandler(
	db *mongo.Database,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		auditStore: audit.New(db),
		userStore:  userstore.New(db),
		errLog:     errLog,
		logger:     logger,
	}
}

// listItem is a single audit event row.
type listItem struct {
	When      string
	Category  string
	EventType string
	Actor     string // who acted; blank when unknown or deleted
	Affected  string // whose account the event concerns
	IP        string
	Success   bool
	Reason    string
	Details   []string // sorted "key=value" pairs
}

// listData is the view model for the audit log page.
type listData struct {
	viewdata.BaseVM

	Items []listItem

	Category  string
	EventType string
	StartDate string
	EndDate   string

	Categories []categoryOption
	EventTypes []string

	Page       int
	TotalPages int
	Total      int64
	RangeStart int
	RangeEnd   int
	HasPrev    bool
	HasNext    bool
	PrevQuery  string
	NextQuery  string
}

type categoryOption struct {
	Value string
	Label string
}

func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Authentication"},
		{Value: audit.CategoryAdmin, Label: "Ninja status"},
		{Value: audit.CategoryInstall, Label: "Install"},
	}
}

// eventTypesForCategory lists the event types a category records.
// An empty category returns every type; an unknown one returns nil.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginLockedOut,
		audit.EventLogout,
	}
	adminEvents := []string{
		audit.EventNinjaStatusUpdated,
		audit.EventNinjaStatusNonceFailed,
	}
	installEvents := []string{
		audit.EventInstalled,
		audit.EventNinjaStatusSeed,
		audit.EventAdminSeeded,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case audit.CategoryInstall:
		return installEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents)+len(installEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		return append(all, installEvents...)
	default:
		return nil
	}
}

// Routes returns a chi.Router with audit log routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireCapability(models.CapManageOptions))
	r.Get("/", h.list)
	return r
}

// filterFromQuery builds the store filter for a page of results.
// Dates are whole UTC days; unparseable dates and unknown categories are ignored.
func filterFromQuery(category, eventType, startDate, endDate string, page int) audit.QueryFilter {
	f := audit.QueryFilter{
		Limit:  pageSize,
		Offset: int64((page - 1) * pageSize),
	}
	if eventTypesForCategory(category) != nil {
		f.Category = category
	}
	for _, et := range eventTypesForCategory(f.Category) {
		if et == eventType {
			f.EventType = eventType
			break
		}
	}
	if t, err := time.ParseInLocation(dateLayout, startDate, time.UTC); err == nil {
		f.StartTime = &t
	}
	if t, err := time.ParseInLocation(dateLayout, endDate, time.UTC); err == nil {
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime = &end
	}
	return f
}

func pageQuery(category, eventType, startDate, endDate string, page int) string {
	v := url.Values{}
	for k, val := range map[string]string{
		"category":   category,
		"event_type": eventType,
		"start_date": startDate,
		"end_date":   endDate,
	} {
		if val != "" {
			v.Set(k, val)
		}
	}
	v.Set("page", strconv.Itoa(page))
	return "?" + v.Encode()
}

func detailPairs(details map[string]string) []string {
	if len(details) == 0 {
		return nil
	}
	out := make([]string, 0, len(details))
	for k, v := range details {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// list displays the audit log with filtering and pagination.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(query.Get(r, "category"))
	eventType := strings.TrimSpace(query.Get(r, "event_type"))
	startDate := strings.TrimSpace(query.Get(r, "start_date"))
	endDate := strings.TrimSpace(query.Get(r, "end_date"))

	page := 1
	if p, err := strconv.Atoi(query.Get(r, "page")); err == nil && p > 0 {
		page = p
	}

	filter := filterFromQuery(category, eventType, startDate, endDate, page)

	events, err := h.auditStore.Query(r.Context(), filter)
	if err != nil {
		h.errLog.Log(r, "failed to query audit events", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	total, err := h.auditStore.CountByFilter(r.Context(), filter)
	if err != nil {
		h.logger.Warn("failed to count audit events", zap.Error(err))
		total = int64(len(events))
	}

	names := h.loginIDs(r, events)

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			When:      e.CreatedAt.UTC().Format(timeLayout),
			Category:  e.Category,
			EventType: e.EventType,
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   detailPairs(e.Details),
		}
		if e.ActorID != nil {
			item.Actor = names[*e.ActorID]
		} else if e.UserID != nil && e.Category == audit.CategoryAuth {
			// Auth events are performed by the user they concern.
			item.Actor = names[*e.UserID]
		}
		if e.UserID != nil {
			item.Affected = names[*e.UserID]
		}
		items = append(items, item)
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	rangeStart := (page-1)*pageSize + 1
	rangeEnd := rangeStart + len(items) - 1
	if len(items) == 0 {
		rangeStart, rangeEnd = 0, 0
	}

	vm := listData{
		BaseVM:     viewdata.NewWithTitle(r, "Audit Log"),
		Items:      items,
		Category:   filter.Category,
		EventType:  filter.EventType,
		StartDate:  startDate,
		EndDate:    endDate,
		Categories: allCategories(),
		EventTypes: eventTypesForCategory(filter.Category),
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		PrevQuery:  pageQuery(filter.Category, filter.EventType, startDate, endDate, page-1),
		NextQuery:  pageQuery(filter.Category, filter.EventType, startDate, endDate, page+1),
	}

	templates.Render(w, r, "auditlog/list", vm)
}

// loginIDs resolves the users referenced by events. Lookup failures leave names blank.
func (h *Handler) loginIDs(r *http.Request, events []audit.Event) map[int64]string {
	seen := make(map[int64]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			seen[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			seen[*e.UserID] = struct{}{}
		}
	}
	names := make(map[int64]string, len(seen))
	if len(seen) == 0 {
		return names
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	users, err := h.userStore.GetByIDs(r.Context(), ids)
	if err != nil {
		h.logger.Warn("failed to resolve audit log users", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.LoginID
	}
	return names
}
