// Package parse is the remote store client for a hosted Parse server
// (Back4App): REST for sessions and CRUD, LiveQuery for change events.
package parse

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/model"
)

type Config struct {
	ServerURL    string
	LiveQueryURL string
	AppID        string
	RESTKey      string
	Timeout      time.Duration
}

type Client struct {
	cfg    Config
	rest   *resty.Client
	dialer *websocket.Dialer
	log    zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	rest := resty.New().
		SetBaseURL(cfg.ServerURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Parse-Application-Id", cfg.AppID).
		SetHeader("X-Parse-REST-API-Key", cfg.RESTKey).
		SetTimeout(cfg.Timeout)
	return &Client{
		cfg:    cfg,
		rest:   rest,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		log:    log.With().Str("component", "parse").Logger(),
	}
}

func (c *Client) Close() error { return nil }

type user struct {
	ObjectID     string `json:"objectId"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	FullName     string `json:"fullName"`
	SessionToken string `json:"sessionToken"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*model.Session, error) {
	var u user
	var perr apiError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("X-Parse-Revocable-Session", "1").
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&u).
		SetError(&perr).
		Post("/login")
	if err != nil {
		return nil, fmt.Errorf("%w: login: %w", model.ErrRemote, err)
	}
	if resp.IsError() {
		// Parse answers bad credentials with "object not found"
		if perr.Code == codeObjectNotFound {
			return nil, fmt.Errorf("%w: %s", model.ErrUnauthenticated, perr.Message)
		}
		return nil, classify(resp.StatusCode(), &perr)
	}
	name := u.FullName
	if name == "" {
		name = u.Username
	}
	return &model.Session{
		UserID:      u.ObjectID,
		Username:    u.Username,
		Role:        model.Role(u.Role),
		DisplayName: name,
		Token:       u.SessionToken,
	}, nil
}

// Logout ends s on the server; an already invalid token counts as success.
func (c *Client) Logout(ctx context.Context, s *model.Session) error {
	if s == nil {
		return nil
	}
	var perr apiError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("X-Parse-Session-Token", s.Token).
		SetBody(map[string]string{}).
		SetError(&perr).
		Post("/logout")
	if err != nil {
		return fmt.Errorf("%w: logout: %w", model.ErrRemote, err)
	}
	if resp.IsError() && perr.Code != codeInvalidSessionToken {
		return classify(resp.StatusCode(), &perr)
	}
	return nil
}

func (c *Client) Backend(s *model.Session) appointments.Backend {
	tok := ""
	if s != nil {
		tok = s.Token
	}
	return &backend{c: c, token: tok}
}

type backend struct {
	c     *Client
	token string
}

var _ appointments.Backend = (*backend)(nil)

func (b *backend) request(ctx context.Context, result any, perr *apiError) *resty.Request {
	r := b.c.rest.R().SetContext(ctx).SetError(perr)
	if result != nil {
		r.SetResult(result)
	}
	if b.token != "" {
		r.SetHeader("X-Parse-Session-Token", b.token)
	}
	return r
}

func check(op string, resp *resty.Response, err error, perr *apiError) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrRemote, op, err)
	}
	if resp.IsError() {
		return classify(resp.StatusCode(), perr)
	}
	return nil
}

const classPath = "/classes/" + className

func (b *backend) List(ctx context.Context, limit int) ([]model.Appointment, error) {
	var out struct {
		Results []object `json:"results"`
	}
	var perr apiError
	resp, err := b.request(ctx, &out, &perr).
		SetQueryParam("order", "-createdAt").
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get(classPath)
	if err := check("list", resp, err, &perr); err != nil {
		return nil, err
	}
	list := make([]model.Appointment, len(out.Results))
	for i := range out.Results {
		list[i] = out.Results[i].toModel()
	}
	return list, nil
}

func (b *backend) Get(ctx context.Context, id string) (*model.Appointment, error) {
	var o object
	var perr apiError
	resp, err := b.request(ctx, &o, &perr).
		SetPathParam("id", id).
		Get(classPath + "/{id}")
	if err := check("get", resp, err, &perr); err != nil {
		return nil, err
	}
	a := o.toModel()
	return &a, nil
}

func (b *backend) Create(ctx context.Context, f model.Fields, creatorID string, acl model.ACL) (*model.Appointment, error) {
	body := fromFields(f)
	if creatorID != "" {
		body.CreatedBy = userPointer(creatorID)
	}
	body.ACL = aclJSON(acl)

	var out struct {
		ObjectID  string `json:"objectId"`
		CreatedAt string `json:"createdAt"`
	}
	var perr apiError
	resp, err := b.request(ctx, &out, &perr).SetBody(body).Post(classPath)
	if err := check("create", resp, err, &perr); err != nil {
		return nil, err
	}
	if out.ObjectID == "" {
		return nil, fmt.Errorf("%w: create: no object id", model.ErrRemote)
	}
	created := parseTime(out.CreatedAt)
	return &model.Appointment{ID: out.ObjectID, Fields: f, CreatedAt: created, UpdatedAt: created, CreatorID: creatorID}, nil
}

func (b *backend) Save(ctx context.Context, a *model.Appointment) (*model.Appointment, error) {
	var out struct {
		UpdatedAt string `json:"updatedAt"`
	}
	var perr apiError
	resp, err := b.request(ctx, &out, &perr).
		SetPathParam("id", a.ID).
		SetBody(fromFields(a.Fields)).
		Put(classPath + "/{id}")
	if err := check("save", resp, err, &perr); err != nil {
		return nil, err
	}
	saved := *a
	if t := parseTime(out.UpdatedAt); !t.IsZero() {
		saved.UpdatedAt = t
	}
	return &saved, nil
}

// SaveStatus sends statut alone, so concurrent edits of the other fields
// survive.
func (b *backend) SaveStatus(ctx context.Context, id string, s model.Status) (*model.Appointment, error) {
	var perr apiError
	resp, err := b.request(ctx, nil, &perr).
		SetPathParam("id", id).
		SetBody(map[string]string{"statut": s.Label()}).
		Put(classPath + "/{id}")
	if err := check("save status", resp, err, &perr); err != nil {
		return nil, err
	}
	return b.Get(ctx, id)
}

func (b *backend) Delete(ctx context.Context, id string) error {
	var perr apiError
	resp, err := b.request(ctx, nil, &perr).
		SetPathParam("id", id).
		Delete(classPath + "/{id}")
	return check("delete", resp, err, &perr)
}
