package model

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusToValidate Status = "to_validate"
	StatusValidated  Status = "validated"
	StatusConfirmed  Status = "confirmed"
	StatusPending    Status = "pending"
	StatusCancelled  Status = "cancelled"
	StatusPostponed  Status = "postponed"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusToValidate,
	StatusValidated,
	StatusConfirmed,
	StatusPending,
	StatusCancelled,
	StatusPostponed,
}

var labels = map[Status]string{
	StatusToValidate: "À valider",
	StatusValidated:  "Validé",
	StatusConfirmed:  "Confirmé",
	StatusPending:    "En attente",
	StatusCancelled:  "Annulé",
	StatusPostponed:  "Reporté",
}

func (s Status) Valid() bool {
	_, ok := labels[s]
	return ok
}

// Label is the human-facing name printed in reports and stored by Parse.
func (s Status) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// ParseStatus accepts a status code or its label, case-insensitively.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	for s, l := range labels {
		if strings.EqualFold(v, string(s)) || strings.EqualFold(v, l) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, v)
}
