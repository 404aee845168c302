// internal/acl/actor.go
package acl

import "context"

// AuthorityAll grants every authority.
const AuthorityAll = "ALL"

// Actor is the user on whose behalf an operation runs.
type Actor struct {
	UID         string   `json:"uid"`
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
	Groups      []string `json:"groups"`
	Super       bool     `json:"super"`
}

// IsSuper reports superuser status, either flagged or through ALL.
func (a *Actor) IsSuper() bool {
	if a == nil {
		return false
	}
	return a.Super || a.HasAuthority(AuthorityAll)
}

// HasAuthority checks for one authority by exact name.
func (a *Actor) HasAuthority(name string) bool {
	if a == nil {
		return false
	}
	for _, auth := range a.Authorities {
		if auth == name {
			return true
		}
	}
	return false
}

// HasAnyAuthority reports whether the actor holds at least one of names.
func (a *Actor) HasAnyAuthority(names []string) bool {
	for _, name := range names {
		if a.HasAuthority(name) {
			return true
		}
	}
	return false
}

// InGroup reports membership of the user group uid.
func (a *Actor) InGroup(uid string) bool {
	if a == nil {
		return false
	}
	for _, g := range a.Groups {
		if g == uid {
			return true
		}
	}
	return false
}

// Name returns the username, or "system" for a nil actor.
func (a *Actor) Name() string {
	if a == nil {
		return "system"
	}
	return a.Username
}

type actorKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// FromContext returns the actor stored in ctx, if any.
func FromContext(ctx context.Context) (*Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(*Actor)
	return a, ok && a != nil
}
