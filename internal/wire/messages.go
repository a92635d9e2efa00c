package wire

import (
	"time"

	"dg-agenda/internal/model"
)

type Appointment struct {
	ID           string
	Date         string
	Time         string
	Duration     string
	Interlocutor string
	Purpose      string
	Location     string
	Status       string
	Comments     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatorID    string
}

func (m *Appointment) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Date)
	b = appendString(b, 3, m.Time)
	b = appendString(b, 4, m.Duration)
	b = appendString(b, 5, m.Interlocutor)
	b = appendString(b, 6, m.Purpose)
	b = appendString(b, 7, m.Location)
	b = appendString(b, 8, m.Status)
	b = appendString(b, 9, m.Comments)
	b, err := appendTime(b, 10, m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if b, err = appendTime(b, 11, m.UpdatedAt); err != nil {
		return nil, err
	}
	b = appendString(b, 12, m.CreatorID)
	return b, nil
}

func (m *Appointment) UnmarshalWire(data []byte) error {
	*m = Appointment{}
	return walk(data, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.ID = string(f.bytes)
		case 2:
			m.Date = string(f.bytes)
		case 3:
			m.Time = string(f.bytes)
		case 4:
			m.Duration = string(f.bytes)
		case 5:
			m.Interlocutor = string(f.bytes)
		case 6:
			m.Purpose = string(f.bytes)
		case 7:
			m.Location = string(f.bytes)
		case 8:
			m.Status = string(f.bytes)
		case 9:
			m.Comments = string(f.bytes)
		case 10:
			m.CreatedAt, err = parseTime(f.bytes)
		case 11:
			m.UpdatedAt, err = parseTime(f.bytes)
		case 12:
			m.CreatorID = string(f.bytes)
		}
		return err
	})
}

func FromModel(a *model.Appointment) *Appointment {
	return &Appointment{
		ID:           a.ID,
		Date:         a.Date,
		Time:         a.Time,
		Duration:     a.Duration,
		Interlocutor: a.Interlocutor,
		Purpose:      a.Purpose,
		Location:     a.Location,
		Status:       string(a.Status),
		Comments:     a.Comments,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
		CreatorID:    a.CreatorID,
	}
}

// ToModel does not validate Status; callers that accept input check it.
func (m *Appointment) ToModel() model.Appointment {
	return model.Appointment{
		ID: m.ID,
		Fields: model.Fields{
			Date:         m.Date,
			Time:         m.Time,
			Duration:     m.Duration,
			Interlocutor: m.Interlocutor,
			Purpose:      m.Purpose,
			Location:     m.Location,
			Status:       model.Status(m.Status),
			Comments:     m.Comments,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		CreatorID: m.CreatorID,
	}
}

type ACL struct {
	PublicRead bool
	WriteRoles []string
	WriteUsers []string
}

func (m *ACL) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendBool(b, 1, m.PublicRead)
	for _, r := range m.WriteRoles {
		b = appendString(b, 2, r)
	}
	for _, u := range m.WriteUsers {
		b = appendString(b, 3, u)
	}
	return b, nil
}

func (m *ACL) UnmarshalWire(data []byte) error {
	*m = ACL{}
	return walk(data, func(f field) error {
		switch f.num {
		case 1:
			m.PublicRead = f.varint != 0
		case 2:
			m.WriteRoles = append(m.WriteRoles, string(f.bytes))
		case 3:
			m.WriteUsers = append(m.WriteUsers, string(f.bytes))
		}
		return nil
	})
}

func FromACL(a model.ACL) *ACL {
	out := &ACL{PublicRead: a.PublicRead, WriteUsers: append([]string(nil), a.WriteUsers...)}
	for _, r := range a.WriteRoles {
		out.WriteRoles = append(out.WriteRoles, string(r))
	}
	return out
}

func (m *ACL) ToModel() model.ACL {
	out := model.ACL{PublicRead: m.PublicRead, WriteUsers: append([]string(nil), m.WriteUsers...)}
	for _, r := range m.WriteRoles {
		out.WriteRoles = append(out.WriteRoles, model.Role(r))
	}
	return out
}

// Empty is used for requests and responses without fields.
type Empty struct{}

func (*Empty) MarshalWire() ([]byte, error) { return nil, nil }

func (*Empty) UnmarshalWire(data []byte) error {
	return walk(data, func(field) error { return nil })
}

type LoginRequest struct {
	Username string
	Password string
}

func (m *LoginRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Username)
	b = appendString(b, 2, m.Password)
	return b, nil
}

func (m *LoginRequest) UnmarshalWire(data []byte) error {
	*m = LoginRequest{}
	return walk(data, func(f field) error {
		switch f.num {
		case 1:
			m.Username = string(f.bytes)
		case 2:
			m.Password = string(f.bytes)
		}
		return nil
	})
}

type LoginResponse struct {
	Token       string
	UserID      string
	Username    string
	Role        string
	DisplayName string
}

func (m *LoginResponse) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Token)
	b = appendString(b, 2, m.UserID)
	b = appendString(b, 3, m.Username)
	b = appendString(b, 4, m.Role)
	b = appendString(b, 5, m.DisplayName)
	return b, nil
}

func (m *LoginResponse) UnmarshalWire(data []byte) error {
	*m = LoginResponse{}
	return walk(data, func(f field) error {
		switch f.num {
		case 1:
			m.Token = string(f.bytes)
		case 2:
			m.UserID = string(f.bytes)
		case 3:
			m.Username = string(f.bytes)
		case 4:
			m.Role = string(f.bytes)
		case 5:
			m.DisplayName = string(f.bytes)
		}
		return nil
	})
}

type ListRequest struct {
	Limit int32
}

func (m *ListRequest) MarshalWire() ([]byte, error) {
	return appendVarint(nil, 1, uint64(m.Limit)), nil
}

func (m *ListRequest) UnmarshalWire(data []byte) error {
	*m = ListRequest{}
	return walk(data, func(f field) error {
		if f.num == 1 {
			m.Limit = int32(f.varint)
		}
		return nil
	})
}

type ListResponse struct {
	Appointments []*Appointment
}

func (m *ListResponse) MarshalWire() ([]byte, error) {
	var b []byte
	for _, a := range m.Appointments {
		v, err := a.MarshalWire()
		if err != nil {
			return nil, err
		}
		b = appendBytes(b, 1, v)
	}
	return b, nil
}

func (m *ListResponse) UnmarshalWire(data []byte) error {
	*m = ListResponse{}
	return walk(data, func(f field) error {
		if f.num != 1 {
			return nil
		}
		a := &Appointment{}
		if err := a.UnmarshalWire(f.bytes); err != nil {
			return err
		}
		m.Appointments = append(m.Appointments, a)
		return nil
	})
}

type CreateRequest struct {
	Appointment *Appointment
	ACL         *ACL
}

func (m *CreateRequest) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Appointment != nil {
		v, err := m.Appointment.MarshalWire()
		if err != nil {
			return nil, err
		}
		b = appendBytes(b, 1, v)
	}
	if m.ACL != nil {
		v, _ := m.ACL.MarshalWire()
		b = appendBytes(b, 2, v)
	}
	return b, nil
}

func (m *CreateRequest) UnmarshalWire(data []byte) error {
	*m = CreateRequest{}
	return walk(data, func(f field) error {
		switch f.num {
		case 1:
			m.Appointment = &Appointment{}
			return m.Appointment.UnmarshalWire(f.bytes)
		case 2:
			m.ACL = &ACL{}
			return m.ACL.UnmarshalWire(f.bytes)
		}
		return nil
	})
}

// AppointmentMessage carries a single appointment: the update request and the
// create/get/update responses.
type AppointmentMessage struct {
	Appointment *Appointment
}

func (m *AppointmentMessage) MarshalWire() ([]byte, error) {
	if m.Appointment == nil {
		return nil, nil
	}
	v, err := m.Appointment.MarshalWire()
	if err != nil {
		return nil, err
	}
	return appendBytes(nil, 1, v), nil
}

func (m *AppointmentMessage) UnmarshalWire(data []byte) error {
	*m = AppointmentMessage{}
	return walk(data, func(f field) error {
		if f.num != 1 {
			return nil
		}
		m.Appointment = &Appointment{}
		return m.Appointment.UnmarshalWire(f.bytes)
	})
}

type IDRequest struct {
	ID string
}

func (m *IDRequest) MarshalWire() ([]byte, error) {
	return appendString(nil, 1, m.ID), nil
}

func (m *IDRequest) UnmarshalWire(data []byte) error {
	*m = IDRequest{}
	return walk(data, func(f field) error {
		if f.num == 1 {
			m.ID = string(f.bytes)
		}
		return nil
	})
}

// StatusRequest changes only the status of an appointment.
type StatusRequest struct {
	ID     string
	Status string
}

func (m *StatusRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Status)
	return b, nil
}

func (m *StatusRequest) UnmarshalWire(data []byte) error {
	*m = StatusRequest{}
	return walk(data, func(f field) error {
		switch f.num {
		case 1:
			m.ID = string(f.bytes)
		case 2:
			m.Status = string(f.bytes)
		}
		return nil
	})
}

type Event struct {
	Kind string
	ID   string
}

func (m *Event) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Kind)
	b = appendString(b, 2, m.ID)
	return b, nil
}

func (m *Event) UnmarshalWire(data []byte) error {
	*m = Event{}
	return walk(data, func(f field) error {
		switch f.num {
		case 1:
			m.Kind = string(f.bytes)
		case 2:
			m.ID = string(f.bytes)
		}
		return nil
	})
}
