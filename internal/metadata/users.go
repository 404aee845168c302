package metadata

import (
	"github.com/FairForge/metaapi/internal/schema"
)

type User struct {
	schema.Identifiable
	Username          string
	FirstName         string
	Surname           string
	Email             string
	Disabled          bool
	Authorities       []string
	Groups            []*UserGroup
	OrganisationUnits []*OrganisationUnit
}

func (u *User) TypeName() string { return "user" }

func UserSchema() *schema.Schema {
	return schema.New("user", "users", func() schema.Object { return &User{} },
		schema.Text("username", func(u *User) string { return u.Username }, func(u *User, v string) { u.Username = v }).AsUnique().WithMaxLength(255),
		schema.Text("firstName", func(u *User) string { return u.FirstName }, func(u *User, v string) { u.FirstName = v }).WithMaxLength(160),
		schema.Text("surname", func(u *User) string { return u.Surname }, func(u *User, v string) { u.Surname = v }).WithMaxLength(160),
		schema.Text("email", func(u *User) string { return u.Email }, func(u *User, v string) { u.Email = v }),
		schema.Boolean("disabled", func(u *User) bool { return u.Disabled }, func(u *User, v bool) { u.Disabled = v }),
		schema.TextList("authorities", func(u *User) []string { return u.Authorities }, func(u *User, v []string) { u.Authorities = v }),
		schema.Collection("userGroups", "userGroup",
			func(u *User) []*UserGroup { return u.Groups },
			func(u *User, v []*UserGroup) { u.Groups = v }).AsInverse(),
		schema.Collection("organisationUnits", "organisationUnit",
			func(u *User) []*OrganisationUnit { return u.OrganisationUnits },
			func(u *User, v []*OrganisationUnit) { u.OrganisationUnits = v }),
	).Require("username", "firstName", "surname").
		WithAuthority(schema.AuthorityCreate, "F_USER_ADD").
		WithAuthority(schema.AuthorityDelete, "F_USER_DELETE")
}

type UserGroup struct {
	schema.Identifiable
	Users []*User
}

func (g *UserGroup) TypeName() string { return "userGroup" }

func UserGroupSchema() *schema.Schema {
	s := schema.New("userGroup", "userGroups", func() schema.Object { return &UserGroup{} },
		schema.Collection("users", "user",
			func(g *UserGroup) []*User { return g.Users },
			func(g *UserGroup, v []*User) { g.Users = v }),
	).Require("name").
		WithAuthority(schema.AuthorityCreatePublic, "F_USERGROUP_PUBLIC_ADD").
		WithAuthority(schema.AuthorityCreatePrivate, "F_USERGROUP_PRIVATE_ADD").
		WithAuthority(schema.AuthorityDelete, "F_USERGROUP_DELETE")
	s.Shareable = true
	return s
}
