package parse

import (
	"time"

	"dg-agenda/internal/model"
)

const className = "Appointment"

type pointer struct {
	Type      string `json:"__type"`
	ClassName string `json:"className"`
	ObjectID  string `json:"objectId"`
}

func userPointer(id string) *pointer {
	return &pointer{Type: "Pointer", ClassName: "_User", ObjectID: id}
}

type permission struct {
	Read  bool `json:"read,omitempty"`
	Write bool `json:"write,omitempty"`
}

// object is an Appointment row as stored by Parse. Field names follow the
// existing data set.
type object struct {
	ObjectID      string                `json:"objectId,omitempty"`
	Date          string                `json:"date"`
	Heure         string                `json:"heure"`
	Duree         string                `json:"duree"`
	Interlocuteur string                `json:"interlocuteur"`
	Motif         string                `json:"motif"`
	Lieu          string                `json:"lieu"`
	Statut        string                `json:"statut"`
	Commentaires  string                `json:"commentaires"`
	CreatedAt     string                `json:"createdAt,omitempty"`
	UpdatedAt     string                `json:"updatedAt,omitempty"`
	CreatedBy     *pointer              `json:"createdBy,omitempty"`
	ACL           map[string]permission `json:"ACL,omitempty"`
}

func fromFields(f model.Fields) object {
	return object{
		Date:          f.Date,
		Heure:         f.Time,
		Duree:         f.Duration,
		Interlocuteur: f.Interlocutor,
		Motif:         f.Purpose,
		Lieu:          f.Location,
		Statut:        f.Status.Label(),
		Commentaires:  f.Comments,
	}
}

// toModel tolerates legacy rows: a missing status reads as pending and an
// unknown one is kept verbatim.
func (o *object) toModel() model.Appointment {
	st := model.StatusPending
	if o.Statut != "" {
		if s, err := model.ParseStatus(o.Statut); err == nil {
			st = s
		} else {
			st = model.Status(o.Statut)
		}
	}
	a := model.Appointment{
		ID: o.ObjectID,
		Fields: model.Fields{
			Date:         o.Date,
			Time:         o.Heure,
			Duration:     o.Duree,
			Interlocutor: o.Interlocuteur,
			Purpose:      o.Motif,
			Location:     o.Lieu,
			Status:       st,
			Comments:     o.Commentaires,
		},
		CreatedAt: parseTime(o.CreatedAt),
		UpdatedAt: parseTime(o.UpdatedAt),
	}
	if o.CreatedBy != nil {
		a.CreatorID = o.CreatedBy.ObjectID
	}
	return a
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// aclJSON renders acl in Parse form: "*" for the public, "role:<name>" for
// roles and the bare user id for users.
func aclJSON(acl model.ACL) map[string]permission {
	out := map[string]permission{}
	if acl.PublicRead {
		out["*"] = permission{Read: true}
	}
	for _, r := range acl.WriteRoles {
		out["role:"+string(r)] = permission{Read: true, Write: true}
	}
	for _, u := range acl.WriteUsers {
		if u == "" {
			continue
		}
		out[u] = permission{Read: true, Write: true}
	}
	return out
}
