// internal/app/features/ninjaprotocol/templates.go
package ninjaprotocol

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "ninjaprotocol",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}
