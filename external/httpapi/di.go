package httpapi

import (
	"github.com/foxseedlab/tsuyaku/internal/library"
	"github.com/foxseedlab/tsuyaku/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		manager := do.MustInvoke[*session.Manager](i)
		lib := do.MustInvoke[*library.Service](i)
		return NewServer(manager, lib), nil
	})
}
