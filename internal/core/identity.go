package core

import "strings"

// Identity is the user/organization pair every backend handshake is keyed by.
type Identity struct {
	User string `json:"user"`
	Org  string `json:"org"`
}

func NewIdentity(user, org string) Identity {
	return Identity{User: strings.TrimSpace(user), Org: strings.TrimSpace(org)}
}

// Valid reports whether both fields are non-empty after trimming.
func (id Identity) Valid() bool {
	return strings.TrimSpace(id.User) != "" && strings.TrimSpace(id.Org) != ""
}

func (id Identity) UserError() string {
	if strings.TrimSpace(id.User) == "" {
		return "User is required"
	}
	return ""
}

func (id Identity) OrgError() string {
	if strings.TrimSpace(id.Org) == "" {
		return "Organization is required"
	}
	return ""
}

func (id Identity) Trimmed() Identity {
	return NewIdentity(id.User, id.Org)
}
