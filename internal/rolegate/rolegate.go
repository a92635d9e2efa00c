// Package rolegate decides whether a session may open a screen.
package rolegate

import "dg-agenda/internal/model"

type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
	RedirectToRoleHome
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect to login"
	case RedirectToRoleHome:
		return "redirect to role home"
	}
	return "unknown"
}

// Home screens.
const (
	HomeSecretary = "secretary"
	HomeDirector  = "director"
)

type Decision struct {
	Outcome Outcome
	// Home is set for RedirectToRoleHome.
	Home string
}

// HomeOf returns the screen a role lands on, or "" when it has none.
func HomeOf(r model.Role) string {
	switch r {
	case model.RoleSecretary:
		return HomeSecretary
	case model.RoleDirector:
		return HomeDirector
	}
	return ""
}

// Decide gates a screen requiring role (empty: any signed-in user). A nil
// session, including one that failed to load, goes to login, as does a
// mismatched role with no home screen of its own.
func Decide(s *model.Session, required model.Role) Decision {
	if s == nil || s.Token == "" {
		return Decision{Outcome: RedirectToLogin}
	}
	if required == "" || s.Role == required {
		return Decision{Outcome: Allow}
	}
	if home := HomeOf(s.Role); home != "" {
		return Decision{Outcome: RedirectToRoleHome, Home: home}
	}
	return Decision{Outcome: RedirectToLogin}
}
