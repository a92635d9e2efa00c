package model

import "time"

type Role string

const (
	RoleSecretary Role = "Secretary"
	RoleDirector  Role = "Director"
	RoleAdmin     Role = "Admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSecretary, RoleDirector, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is the authenticated identity a front end acts as. Token is opaque
// to everything except the remote driver that issued it.
type Session struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

// Fields are the editable attributes of an appointment.
type Fields struct {
	Date         string `yaml:"date" validate:"required,datetime=2006-01-02"`
	Time         string `yaml:"time" validate:"required,datetime=15:04"`
	Duration     string `yaml:"duration,omitempty"`
	Interlocutor string `yaml:"interlocutor" validate:"required"`
	Purpose      string `yaml:"purpose" validate:"required"`
	Location     string `yaml:"location" validate:"required"`
	Status       Status `yaml:"status" validate:"required,status"`
	Comments     string `yaml:"comments,omitempty"`
}

type Appointment struct {
	ID string
	Fields
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatorID string
}

// Start combines Date and Time in loc. ok is false when either part does not parse.
func (a *Appointment) Start(loc *time.Location) (t time.Time, ok bool) {
	t, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Day returns the calendar date in loc.
func (a *Appointment) Day(loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02", a.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type EventKind string

const (
	EventCreated EventKind = "create"
	EventUpdated EventKind = "update"
	EventDeleted EventKind = "delete"
)

// Event announces a change somewhere in the appointment collection. Consumers
// re-list rather than trusting ID.
type Event struct {
	Kind EventKind
	ID   string
}
