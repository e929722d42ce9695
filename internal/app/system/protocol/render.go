package protocol

import (
	"context"
	"fmt"

	"github.com/dalemusser/ninjaprotocol/internal/app/system/status"
)

// Option is one entry of a row's status selector.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Row is one user in the listing.
type Row struct {
	ID      int64
	LoginID string
	Email   string
	Roles   string
	Status  string
	Options []Option
}

// Page is everything the admin page shows besides the notice.
type Page struct {
	Rows  []Row
	Token string

	// Totals counts rows per status value.
	Totals map[string]int
}

// Empty reports whether there are no users to list.
func (p *Page) Empty() bool {
	return len(p.Rows) == 0
}

// Render lists every user with the status shown in their selector.
// Callers without models.CapManageOptions get ErrForbidden before any
// storage is read.
func (s *Service) Render(ctx context.Context, actor Actor) (*Page, error) {
	if !authorized(actor) {
		return nil, ErrForbidden
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	token, err := s.tokens.Issue(Action, actor.Subject())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	page := &Page{
		Rows:   make([]Row, 0, len(users)),
		Token:  token,
		Totals: make(map[string]int, 3),
	}

	for _, u := range users {
		v, _, err := s.meta.Get(ctx, u.ID, status.MetaKey)
		if err != nil {
			return nil, fmt.Errorf("get status for user %d: %w", u.ID, err)
		}
		current := status.OrDefault(v)

		page.Rows = append(page.Rows, Row{
			ID:      u.ID,
			LoginID: u.LoginID,
			Email:   u.Email,
			Roles:   u.RoleList(),
			Status:  current,
			Options: selectOptions(current),
		})
		page.Totals[current]++
	}

	return page, nil
}

func selectOptions(current string) []Option {
	all := status.All()
	out := make([]Option, len(all))
	for i, o := range all {
		out[i] = Option{Value: o.Value, Label: o.Label, Selected: o.Value == current}
	}
	return out
}
