package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/config"
	"dg-agenda/internal/logger"
	"dg-agenda/internal/model"
	"dg-agenda/internal/reconcile"
	"dg-agenda/internal/remote"
	"dg-agenda/internal/rolegate"
	"dg-agenda/internal/session"
)

// app carries what every command needs. It is filled lazily by setup so that
// --help works without configuration.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	openDriver func(*config.Client, zerolog.Logger) (remote.Driver, error)
	now        func() time.Time
	debug      bool

	cfg      *config.Client
	log      zerolog.Logger
	sessions *session.Store
	driver   remote.Driver
	sess     *model.Session
}

func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	lvl := logger.ParseLevel(cfg.LogLevel)
	if a.debug {
		lvl = zerolog.DebugLevel
	}
	a.cfg = cfg
	a.log = logger.Console(a.errOut, lvl)
	a.sessions = session.NewStore(cfg.SessionFile)
	if a.now == nil {
		a.now = time.Now
	}
	return nil
}

func (a *app) remote() (remote.Driver, error) {
	if a.driver != nil {
		return a.driver, nil
	}
	d, err := a.openDriver(a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.driver = d
	return d, nil
}

func (a *app) close() {
	if a.driver != nil {
		_ = a.driver.Close()
		a.driver = nil
	}
}

// GateError is returned when the role gate turns a screen away.
type GateError struct {
	Decision rolegate.Decision
}

func (e *GateError) Error() string {
	if e.Decision.Outcome == rolegate.RedirectToRoleHome {
		return fmt.Sprintf("this screen is not for your role; use `agenda %s`", e.Decision.Home)
	}
	return "not signed in; use `agenda login`"
}

// gate is the PersistentPreRunE of a protected command group. Nothing of the
// screen runs until the session has been checked.
func (a *app) gate(required model.Role) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		if err := a.setup(); err != nil {
			return err
		}
		fmt.Fprintln(a.errOut, "checking session...")
		s, err := a.sessions.Load()
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			a.log.Warn().Err(err).Msg("stored session unreadable")
		}
		d := rolegate.Decide(s, required)
		if d.Outcome != rolegate.Allow {
			return &GateError{Decision: d}
		}
		a.sess = s
		return nil
	}
}

func (a *app) repository() (*appointments.Repository, error) {
	d, err := a.remote()
	if err != nil {
		return nil, err
	}
	return appointments.New(d.Backend(a.sess), a.sess, appointments.WithMaxRetrieval(a.cfg.MaxRetrieval)), nil
}

// mount opens a screen's controller, following changes live only when
// asked to. The caller closes it.
func (a *app) mount(ctx context.Context, live bool) (*reconcile.Controller, error) {
	repo, err := a.repository()
	if err != nil {
		return nil, err
	}
	c := reconcile.New(repo, reconcile.Options{MaxPending: a.cfg.MaxPending, Log: a.log, Now: a.now})
	load := c.Load
	if live {
		load = c.Mount
	}
	if err := load(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (a *app) location() *time.Location {
	loc, err := a.cfg.Location()
	if err != nil {
		a.log.Warn().Err(err).Str("timezone", a.cfg.Timezone).Msg("unknown timezone, using local")
		return time.Local
	}
	return loc
}
