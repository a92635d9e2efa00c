// Package remote selects the remote store client the front end talks to.
package remote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/config"
	"dg-agenda/internal/model"
	"dg-agenda/internal/remote/grpcremote"
	"dg-agenda/internal/remote/parse"
)

// Driver is a remote store client: it opens and ends sessions and hands out
// backends bound to one.
type Driver interface {
	// Login fails with model.ErrUnauthenticated on bad credentials.
	Login(ctx context.Context, username, password string) (*model.Session, error)
	Logout(ctx context.Context, s *model.Session) error
	Backend(s *model.Session) appointments.Backend
	Close() error
}

var (
	_ Driver = (*grpcremote.Client)(nil)
	_ Driver = (*parse.Client)(nil)
)

// Open builds the driver named by cfg.Driver.
func Open(cfg *config.Client, log zerolog.Logger) (Driver, error) {
	switch cfg.Driver {
	case "grpc":
		c, err := grpcremote.Dial(cfg.ServerAddr, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "parse":
		if cfg.ParseAppID == "" {
			return nil, fmt.Errorf("remote: AGENDA_PARSE_APP_ID is required for the parse driver")
		}
		return parse.New(parse.Config{
			ServerURL:    cfg.ParseServerURL,
			LiveQueryURL: cfg.LiveQueryURL(),
			AppID:        cfg.ParseAppID,
			RESTKey:      cfg.ParseRESTKey,
		}, log), nil
	}
	return nil, fmt.Errorf("remote: unknown driver %q", cfg.Driver)
}
