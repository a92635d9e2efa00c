package model

import "slices"

// Principal is who a store operation runs as: a user and the roles it belongs to.
type Principal struct {
	UserID string
	Roles  []Role
}

// ACL is the per-record access policy attached when a record is created.
type ACL struct {
	PublicRead bool
	WriteRoles []Role
	WriteUsers []string
}

// DefaultACL grants read to everyone and write to the office roles plus the
// creator, when there is one.
func DefaultACL(creatorID string) ACL {
	acl := ACL{
		PublicRead: true,
		WriteRoles: []Role{RoleSecretary, RoleDirector, RoleAdmin},
	}
	if creatorID != "" {
		acl.WriteUsers = []string{creatorID}
	}
	return acl
}

func (a ACL) CanWrite(p Principal) bool {
	if p.UserID != "" && slices.Contains(a.WriteUsers, p.UserID) {
		return true
	}
	for _, r := range p.Roles {
		if slices.Contains(a.WriteRoles, r) {
			return true
		}
	}
	return false
}

// CanRead: writers can always read.
func (a ACL) CanRead(p Principal) bool {
	return a.PublicRead || a.CanWrite(p)
}
