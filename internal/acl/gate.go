package acl

import (
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/schema"
)

// Gate answers permission questions for an actor against types and objects.
// A nil actor runs with system privileges.
type Gate struct {
	registry *schema.Registry
	auditor  *Auditor
	logger   *zap.Logger
}

// NewGate creates a gate recording decisions in auditor. auditor may be nil.
func NewGate(registry *schema.Registry, auditor *Auditor, logger *zap.Logger) *Gate {
	return &Gate{registry: registry, auditor: auditor, logger: logger}
}

func (g *Gate) override(a *Actor) bool {
	return a == nil || a.IsSuper()
}

func (g *Gate) canAccess(a *Actor, authorities []string) bool {
	return g.override(a) || len(authorities) == 0 || a.HasAnyAuthority(authorities)
}

// CanReadType checks the type level read authority.
func (g *Gate) CanReadType(a *Actor, s *schema.Schema) bool {
	return g.canAccess(a, s.AuthoritiesFor(schema.AuthorityRead))
}

// CanCreateType checks whether a may create objects of s at all.
func (g *Gate) CanCreateType(a *Actor, s *schema.Schema) bool {
	if g.override(a) {
		return true
	}
	if !s.Shareable {
		return g.canAccess(a, s.AuthoritiesFor(schema.AuthorityCreate))
	}
	return g.CanMakePublic(a, s) || g.CanMakePrivate(a, s)
}

func (g *Gate) CanMakePublic(a *Actor, s *schema.Schema) bool {
	return g.override(a) || (s.Shareable && g.canAccess(a, s.AuthoritiesFor(schema.AuthorityCreatePublic)))
}

func (g *Gate) CanMakePrivate(a *Actor, s *schema.Schema) bool {
	return g.override(a) || (s.Shareable && g.canAccess(a, s.AuthoritiesFor(schema.AuthorityCreatePrivate)))
}

func (g *Gate) CanMakeExternal(a *Actor, s *schema.Schema) bool {
	return g.override(a) || (s.Shareable && g.canAccess(a, s.AuthoritiesFor(schema.AuthorityExternalize)))
}

// CanRead checks read access on one object.
func (g *Gate) CanRead(a *Actor, obj schema.Object) bool {
	s, ok := g.schemaOf(obj)
	if !ok {
		return false
	}
	if g.override(a) {
		return true
	}
	if !g.canAccess(a, s.AuthoritiesFor(schema.AuthorityRead)) {
		return false
	}
	sharing := obj.Base().Sharing
	return !s.Shareable || sharing.Public == "" || g.checkOwner(a, obj) || g.checkSharingPermission(a, obj, Read)
}

// CanUpdate checks write access on one object.
func (g *Gate) CanUpdate(a *Actor, obj schema.Object) bool {
	return g.canWrite(a, obj, schema.AuthorityUpdate)
}

// CanDelete checks delete access on one object.
func (g *Gate) CanDelete(a *Actor, obj schema.Object) bool {
	return g.canWrite(a, obj, schema.AuthorityDelete)
}

// CanManage checks sharing management access on one object.
func (g *Gate) CanManage(a *Actor, obj schema.Object) bool {
	return g.CanUpdate(a, obj)
}

// CanDataRead checks data value read access on data-shareable objects.
func (g *Gate) CanDataRead(a *Actor, obj schema.Object) bool {
	s, ok := g.schemaOf(obj)
	if !ok || !s.DataShareable {
		return false
	}
	return g.override(a) || g.checkSharingPermission(a, obj, DataRead)
}

// CanDataWrite checks data value write access on data-shareable objects.
func (g *Gate) CanDataWrite(a *Actor, obj schema.Object) bool {
	s, ok := g.schemaOf(obj)
	if !ok || !s.DataShareable {
		return false
	}
	return g.override(a) || g.checkSharingPermission(a, obj, DataWrite)
}

func (g *Gate) canWrite(a *Actor, obj schema.Object, kind schema.AuthorityKind) bool {
	s, ok := g.schemaOf(obj)
	if !ok {
		return false
	}
	if g.override(a) {
		return true
	}

	var authorities []string
	authorities = append(authorities, s.AuthoritiesFor(kind)...)
	if len(authorities) == 0 {
		authorities = append(authorities, s.AuthoritiesFor(schema.AuthorityCreate)...)
		authorities = append(authorities, s.AuthoritiesFor(schema.AuthorityCreatePublic)...)
		authorities = append(authorities, s.AuthoritiesFor(schema.AuthorityCreatePrivate)...)
	}
	if !g.canAccess(a, authorities) {
		return false
	}
	return g.writeCommonCheck(a, s, obj)
}

func (g *Gate) writeCommonCheck(a *Actor, s *schema.Schema, obj schema.Object) bool {
	if !s.Shareable {
		return true
	}
	if !g.checkSharingAccess(a, s, obj) {
		return false
	}
	return g.checkOwner(a, obj) || g.checkSharingPermission(a, obj, Write)
}

// checkSharingAccess verifies the actor could have produced the object's
// current sharing settings.
func (g *Gate) checkSharingAccess(a *Actor, s *schema.Schema, obj schema.Object) bool {
	sharing := obj.Base().Sharing
	canMakePublic := g.CanMakePublic(a, s)
	canMakePrivate := g.CanMakePrivate(a, s)

	if sharing.PublicAccess() == schema.DefaultAccess {
		if !canMakePublic && !canMakePrivate {
			return false
		}
	} else if !canMakePublic {
		return false
	}

	if sharing.External && !g.CanMakeExternal(a, s) {
		return false
	}
	return true
}

// checkOwner treats objects without an owner as owned by everyone.
func (g *Gate) checkOwner(a *Actor, obj schema.Object) bool {
	owner := obj.Base().Sharing.Owner
	return owner == "" || owner == a.UID
}

func (g *Gate) checkSharingPermission(a *Actor, obj schema.Object, p Permission) bool {
	sharing := obj.Base().Sharing
	if IsEnabled(sharing.PublicAccess(), p) {
		return true
	}
	for _, entry := range sharing.UserGroups {
		if a.InGroup(entry.ID) && IsEnabled(entry.Access, p) {
			return true
		}
	}
	for _, entry := range sharing.Users {
		if entry.ID == a.UID && IsEnabled(entry.Access, p) {
			return true
		}
	}
	return false
}

// Access computes the access summary rendered in the `access` field.
func (g *Gate) Access(a *Actor, obj schema.Object) *schema.Access {
	s, ok := g.schemaOf(obj)
	if !ok {
		return &schema.Access{}
	}
	access := &schema.Access{
		Manage:      g.CanManage(a, obj),
		Externalize: g.CanMakeExternal(a, s),
		Write:       g.CanUpdate(a, obj),
		Read:        g.CanRead(a, obj),
		Update:      g.CanUpdate(a, obj),
		Delete:      g.CanDelete(a, obj),
	}
	if s.DataShareable {
		access.Data = &schema.DataAccess{
			Read:  g.CanDataRead(a, obj),
			Write: g.CanDataWrite(a, obj),
		}
	}
	return access
}

// Authorize checks op on s, or on obj when it is non-nil, and returns an
// AccessDeniedError when refused. Every decision is audited.
func (g *Gate) Authorize(a *Actor, op Operation, s *schema.Schema, obj schema.Object) error {
	var granted bool
	switch op {
	case OpRead:
		if obj == nil {
			granted = g.CanReadType(a, s)
		} else {
			granted = g.CanRead(a, obj)
		}
	case OpCreate:
		granted = g.CanCreateType(a, s)
	case OpUpdate:
		granted = obj != nil && g.CanUpdate(a, obj)
	case OpDelete:
		granted = obj != nil && g.CanDelete(a, obj)
	case OpManage:
		granted = obj != nil && g.CanManage(a, obj)
	}

	uid := ""
	if obj != nil {
		uid = obj.Base().UID
	}
	if g.auditor != nil {
		g.auditor.Record(a, op, s.Name, uid, granted)
	}
	if granted {
		return nil
	}

	g.logger.Debug("access denied",
		zap.String("actor", a.Name()),
		zap.String("operation", string(op)),
		zap.String("type", s.Name),
		zap.String("uid", uid))
	return AccessDeniedError{Operation: op, Type: s.Name, UID: uid}
}

func (g *Gate) schemaOf(obj schema.Object) (*schema.Schema, bool) {
	s, err := g.registry.SchemaOf(obj)
	if err != nil {
		g.logger.Warn("permission check on unregistered type", zap.String("type", obj.TypeName()))
		return nil, false
	}
	return s, true
}
