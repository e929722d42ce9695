// internal/app/system/viewdata/viewdata.go
package viewdata

// Terminology: User Identifiers
//   - UserID / userID / user_id: The integer _id that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"net/http"
	"sync"

	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// Default labels used before Init is called.
const (
	DefaultSiteName  = "Ninja Users Protocol"
	DefaultMenuLabel = "Ninja Protocol"
)

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{BaseVM: viewdata.New(r)}
//	data.Title = "Page Title"
type BaseVM struct {
	SiteName  string
	MenuLabel string

	// User context (from auth middleware)
	IsLoggedIn bool
	UserID     int64
	LoginID    string
	UserName   string
	Roles      string
	IsAdmin    bool // holds manage_options; controls the menu entry

	// Page context
	Title       string
	CurrentPath string

	// Security
	CSRFToken string // CSRF token for forms (use in hidden input field)
}

var (
	mu        sync.RWMutex
	siteName  = DefaultSiteName
	menuLabel = DefaultMenuLabel
)

// Init sets the site name and admin menu label shown on every page.
// Empty values keep the defaults. Call this once at startup from bootstrap.
func Init(site, menu string) {
	mu.Lock()
	defer mu.Unlock()
	if site != "" {
		siteName = site
	}
	if menu != "" {
		menuLabel = menu
	}
}

// New creates a BaseVM for the request.
func New(r *http.Request) BaseVM {
	mu.RLock()
	vm := BaseVM{
		SiteName:    siteName,
		MenuLabel:   menuLabel,
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}
	mu.RUnlock()

	if user, ok := auth.CurrentUser(r); ok {
		vm.IsLoggedIn = true
		vm.UserID = user.ID
		vm.LoginID = user.LoginID
		vm.UserName = user.Name
		vm.Roles = user.RoleList()
		vm.IsAdmin = user.Can(models.CapManageOptions)
	}
	return vm
}

// NewWithTitle is New with Title set.
func NewWithTitle(r *http.Request, title string) BaseVM {
	vm := New(r)
	vm.Title = title
	return vm
}
