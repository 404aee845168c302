// Package importer validates and persists batches of metadata objects and
// reports the outcome per type and per object.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/schema"
	"github.com/FairForge/metaapi/internal/store"
	"github.com/FairForge/metaapi/internal/validation"
)

// Strategy selects what an import does with each object.
type Strategy string

const (
	Create          Strategy = "CREATE"
	Update          Strategy = "UPDATE"
	CreateAndUpdate Strategy = "CREATE_AND_UPDATE"
	Delete          Strategy = "DELETE"
)

// ParseStrategy accepts the request parameter form. Empty means CREATE_AND_UPDATE.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToUpper(s) {
	case "":
		return CreateAndUpdate, nil
	case string(Create), string(Update), string(CreateAndUpdate), string(Delete):
		return Strategy(strings.ToUpper(s)), nil
	}
	return "", fmt.Errorf("unknown import strategy %q", s)
}

// AtomicMode decides whether one invalid object blocks the whole batch.
type AtomicMode string

const (
	AtomicAll  AtomicMode = "ALL"
	AtomicNone AtomicMode = "NONE"
)

// ParseAtomicMode accepts the request parameter form. Empty means ALL.
func ParseAtomicMode(s string) (AtomicMode, error) {
	switch strings.ToUpper(s) {
	case "", string(AtomicAll):
		return AtomicAll, nil
	case string(AtomicNone):
		return AtomicNone, nil
	}
	return "", fmt.Errorf("unknown atomic mode %q", s)
}

// ReportMode controls how much detail a report keeps.
type ReportMode string

const (
	ReportFull   ReportMode = "FULL"
	ReportErrors ReportMode = "ERRORS"
	ReportDebug  ReportMode = "DEBUG"
)

// ParseReportMode accepts the request parameter form. Empty means ERRORS.
func ParseReportMode(s string) (ReportMode, error) {
	switch strings.ToUpper(s) {
	case "", string(ReportErrors):
		return ReportErrors, nil
	case string(ReportFull), string(ReportDebug):
		return ReportMode(strings.ToUpper(s)), nil
	}
	return "", fmt.Errorf("unknown report mode %q", s)
}

// Params configures one import call.
type Params struct {
	Strategy   Strategy
	AtomicMode AtomicMode
	ReportMode ReportMode
}

// Observer receives one call per imported object.
type Observer interface {
	ObserveImport(typeName string, strategy Strategy, outcome string)
}

// Importer runs the two phase import: every object is validated first, then
// the valid ones are persisted.
type Importer struct {
	store     store.Store
	registry  *schema.Registry
	gate      *acl.Gate
	validator *validation.Validator
	observer  Observer
	logger    *zap.Logger
}

// New creates an importer.
func New(st store.Store, registry *schema.Registry, gate *acl.Gate, validator *validation.Validator, logger *zap.Logger) *Importer {
	return &Importer{
		store:     st,
		registry:  registry,
		gate:      gate,
		validator: validator,
		logger:    logger,
	}
}

// SetObserver attaches an outcome observer such as a metrics collector.
func (im *Importer) SetObserver(o Observer) {
	im.observer = o
}

type action int

const (
	actionCreate action = iota
	actionUpdate
	actionDelete
)

func (a action) outcome() string {
	switch a {
	case actionCreate:
		return "created"
	case actionUpdate:
		return "updated"
	}
	return "deleted"
}

type entry struct {
	obj      schema.Object
	schema   *schema.Schema
	existing schema.Object
	action   action
	report   *ObjectReport
}

// batch tracks what the request itself brings, so objects may reference or
// collide with each other before anything is stored.
type batch struct {
	uids   map[string]map[string]bool
	unique map[string]string
	stored map[string][]schema.Object
}

func newBatch() *batch {
	return &batch{
		uids:   make(map[string]map[string]bool),
		unique: make(map[string]string),
		stored: make(map[string][]schema.Object),
	}
}

func (b *batch) has(typeName, uid string) bool {
	return b.uids[typeName][uid]
}

func (b *batch) add(typeName, uid string) {
	if b.uids[typeName] == nil {
		b.uids[typeName] = make(map[string]bool)
	}
	b.uids[typeName][uid] = true
}

// Import validates and persists objects under params. Per-object failures
// are collected in the report; only storage failures are returned as errors.
func (im *Importer) Import(ctx context.Context, objects []schema.Object, params Params) (*Report, error) {
	if params.Strategy == "" {
		params.Strategy = CreateAndUpdate
	}
	if params.AtomicMode == "" {
		params.AtomicMode = AtomicAll
	}
	actor, _ := acl.FromContext(ctx)

	report := NewReport()
	b := newBatch()
	entries := make([]*entry, 0, len(objects))

	for _, obj := range objects {
		s, err := im.registry.SchemaOf(obj)
		if err != nil {
			return nil, err
		}
		t := report.TypeReport(s.Name)
		base := obj.Base()
		e := &entry{
			obj:    obj,
			schema: s,
			report: &ObjectReport{Klass: s.Name, Index: len(t.ObjectReports), UID: base.UID, DisplayName: base.Name},
		}
		t.ObjectReports = append(t.ObjectReports, e.report)
		if err := im.prepare(ctx, actor, e, params.Strategy, b); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	for _, e := range entries {
		if e.report.HasErrors() || e.action == actionDelete {
			continue
		}
		if err := im.checkReferences(ctx, e, b); err != nil {
			return nil, err
		}
		if err := im.checkUnique(ctx, e, b); err != nil {
			return nil, err
		}
	}

	if params.AtomicMode == AtomicAll && report.HasErrors() {
		for _, e := range entries {
			if !e.report.HasErrors() {
				e.report.add(newError(ErrAtomicAbort, e.schema.Name, "",
					"Import of object `%s` was aborted because other objects in the request failed validation", e.obj.Base().UID))
			}
		}
	}

	for _, e := range entries {
		t := report.TypeReport(e.schema.Name)
		if e.report.HasErrors() {
			t.Stats.Ignored++
			im.observe(e.schema.Name, params.Strategy, "ignored")
			continue
		}
		if err := im.commit(ctx, e); err != nil {
			// A uid taken by a concurrent writer is reported per object. Objects
			// committed before it stay written, even under AtomicAll.
			if errors.Is(err, store.ErrDuplicate) {
				e.report.add(newError(ErrObjectExists, e.schema.Name, "id",
					"Object with UID `%s` of type %s already exists", e.obj.Base().UID, e.schema.Name))
				t.Stats.Ignored++
				im.observe(e.schema.Name, params.Strategy, "ignored")
				continue
			}
			return nil, fmt.Errorf("import %s %s: %w", e.schema.Name, e.obj.Base().UID, err)
		}
		switch e.action {
		case actionCreate:
			t.Stats.Created++
		case actionUpdate:
			t.Stats.Updated++
		case actionDelete:
			t.Stats.Deleted++
		}
		e.report.UID = e.obj.Base().UID
		im.observe(e.schema.Name, params.Strategy, e.action.outcome())
	}

	report.finish()
	trim(report, params.ReportMode)

	im.logger.Info("import finished",
		zap.String("actor", actor.Name()),
		zap.String("strategy", string(params.Strategy)),
		zap.String("status", string(report.Status)),
		zap.Int("created", report.Stats.Created),
		zap.Int("updated", report.Stats.Updated),
		zap.Int("deleted", report.Stats.Deleted),
		zap.Int("ignored", report.Stats.Ignored))
	return report, nil
}

func (im *Importer) prepare(ctx context.Context, actor *acl.Actor, e *entry, strategy Strategy, b *batch) error {
	s := e.schema
	base := e.obj.Base()

	if base.UID != "" && !schema.IsValidUID(base.UID) {
		e.report.add(newError(ErrObjectNotFound, s.Name, "id", "Invalid UID `%s` for property `id`", base.UID))
		return nil
	}
	if base.UID != "" {
		if b.has(s.Name, base.UID) {
			e.report.add(newError(ErrObjectExists, s.Name, "id",
				"Object with UID `%s` of type %s appears more than once", base.UID, s.Name))
			return nil
		}
		existing, err := im.store.GetNoAcl(ctx, s.Name, base.UID)
		var notFound store.NotFoundError
		switch {
		case errors.As(err, &notFound):
		case err != nil:
			return err
		default:
			e.existing = existing
		}
	}

	switch strategy {
	case Create:
		if e.existing != nil {
			e.report.add(newError(ErrObjectExists, s.Name, "id",
				"Object with UID `%s` of type %s already exists", base.UID, s.Name))
			return nil
		}
		e.action = actionCreate
	case Update, Delete:
		if e.existing == nil {
			e.report.add(newError(ErrObjectNotFound, s.Name, "id",
				"Object with UID `%s` of type %s could not be found", base.UID, s.Name))
			return nil
		}
		e.action = actionUpdate
		if strategy == Delete {
			e.action = actionDelete
		}
	default:
		e.action = actionCreate
		if e.existing != nil {
			e.action = actionUpdate
		}
	}

	switch e.action {
	case actionCreate:
		if !im.gate.CanCreateType(actor, s) {
			e.report.add(newError(ErrNoCreateAccess, s.Name, "",
				"User `%s` is not allowed to create objects of type %s", actor.Name(), s.Name))
			return nil
		}
		if base.UID == "" {
			base.UID = schema.GenerateUID()
			e.report.UID = base.UID
		}
		im.applyCreateDefaults(actor, s, e.obj)
		e.report.add(im.sharingErrors(actor, s, base.Sharing, nil)...)
	case actionUpdate:
		if !im.gate.CanUpdate(actor, e.existing) {
			e.report.add(newError(ErrNoUpdateAccess, s.Name, "",
				"User `%s` is not allowed to update object `%s`", actor.Name(), base.UID))
			return nil
		}
		preserve(s, e.existing, e.obj)
		previous := e.existing.Base().Sharing
		e.report.add(im.sharingErrors(actor, s, base.Sharing, &previous)...)
	case actionDelete:
		if !im.gate.CanDelete(actor, e.existing) {
			e.report.add(newError(ErrNoDeleteAccess, s.Name, "",
				"User `%s` is not allowed to delete object `%s`", actor.Name(), base.UID))
			return nil
		}
		b.add(s.Name, base.UID)
		return nil
	}
	b.add(s.Name, base.UID)
	e.report.add(ValidateTranslations(s.Name, base.Translations)...)

	violations, err := im.validator.Validate(s, e.obj)
	if err != nil {
		return err
	}
	for _, v := range violations {
		e.report.add(violationReport(s, v))
	}
	return nil
}

// applyCreateDefaults gives new shareable objects an owner and a public
// access string the actor is allowed to set.
func (im *Importer) applyCreateDefaults(actor *acl.Actor, s *schema.Schema, obj schema.Object) {
	if !s.Shareable {
		return
	}
	sharing := &obj.Base().Sharing
	if sharing.Owner == "" && actor != nil {
		sharing.Owner = actor.UID
	}
	if sharing.Public == "" {
		if im.gate.CanMakePublic(actor, s) {
			sharing.Public = acl.AccessReadWrite
		} else {
			sharing.Public = schema.DefaultAccess
		}
	}
}

// preserve carries system managed fields of the stored object over to its
// replacement.
func preserve(s *schema.Schema, existing, obj schema.Object) {
	prev, next := existing.Base(), obj.Base()
	next.Created = prev.Created
	next.CreatedBy = prev.CreatedBy
	next.Favorites = prev.Favorites
	next.Subscribers = prev.Subscribers
	if s.Shareable && next.Sharing.Public == "" {
		next.Sharing = prev.Sharing
	}
	if next.Sharing.Owner == "" {
		next.Sharing.Owner = prev.Sharing.Owner
	}
}

func (im *Importer) sharingErrors(actor *acl.Actor, s *schema.Schema, sharing schema.Sharing, previous *schema.Sharing) []ErrorReport {
	if !s.Shareable {
		return nil
	}
	var out []ErrorReport
	check := func(property, access string) {
		if access != "" && !acl.IsValidAccess(access) {
			out = append(out, newError(ErrInvalidAccess, s.Name, property, "Invalid access string `%s`", access))
		}
	}
	check("publicAccess", sharing.Public)
	for _, u := range sharing.Users {
		check("userAccesses", u.Access)
	}
	for _, g := range sharing.UserGroups {
		check("userGroupAccesses", g.Access)
	}

	publicChanged := previous == nil || previous.PublicAccess() != sharing.PublicAccess()
	if publicChanged && sharing.PublicAccess() != schema.DefaultAccess && !im.gate.CanMakePublic(actor, s) {
		out = append(out, newError(ErrNoPublicAccess, s.Name, "publicAccess",
			"User `%s` is not allowed to make objects of type %s public", actor.Name(), s.Name))
	}
	externalChanged := previous == nil || previous.External != sharing.External
	if sharing.External && externalChanged && !im.gate.CanMakeExternal(actor, s) {
		out = append(out, newError(ErrNoExternalAccess, s.Name, "externalAccess",
			"User `%s` is not allowed to make objects of type %s external", actor.Name(), s.Name))
	}
	return out
}

func violationReport(s *schema.Schema, v validation.Violation) ErrorReport {
	var r ErrorReport
	switch v.Rule {
	case validation.RuleRequired:
		r = newError(ErrMissingProperty, s.Name, v.Property, "Missing required property `%s`", v.Property)
	case validation.RuleLength:
		limit := 0
		if p, ok := s.Property(v.Property); ok {
			limit = p.MaxLength
		}
		given := 0
		if str, ok := v.Value.(string); ok {
			given = utf8.RuneCountInString(str)
		}
		r = newError(ErrLengthExceeded, s.Name, v.Property,
			"Maximum length of property `%s` is %d, but given length was %d", v.Property, limit, given)
	default:
		r = newError(ErrInvalidValue, s.Name, v.Property, "Property `%s` has an invalid value: %s", v.Property, v.Message)
	}
	r.Value = v.Value
	return r
}

func (im *Importer) checkReferences(ctx context.Context, e *entry, b *batch) error {
	for _, p := range e.schema.Properties() {
		if !p.Persisted || !p.Kind.IsIdentifiable() {
			continue
		}
		var refs []schema.Object
		switch v := p.Get(e.obj).(type) {
		case schema.Object:
			refs = []schema.Object{v}
		case []schema.Object:
			refs = v
		}
		for _, ref := range refs {
			uid := ref.Base().UID
			if uid == "" || b.has(p.ItemType, uid) {
				continue
			}
			ok, err := im.store.Exists(ctx, p.ItemType, uid)
			if err != nil {
				return err
			}
			if !ok {
				e.report.add(newError(ErrInvalidReference, e.schema.Name, p.Name,
					"Invalid reference `%s` (%s) on object `%s` for association `%s`", uid, p.ItemType, e.obj.Base().UID, p.Name))
			}
		}
	}
	return nil
}

func (im *Importer) checkUnique(ctx context.Context, e *entry, b *batch) error {
	uid := e.obj.Base().UID
	for _, p := range e.schema.Properties() {
		if !p.Unique || p.Name == "id" || p.Kind != schema.KindText {
			continue
		}
		value, _ := p.Get(e.obj).(string)
		if value == "" {
			continue
		}

		key := e.schema.Name + "." + p.Name + "=" + value
		if other, ok := b.unique[key]; ok && other != uid {
			e.report.add(uniqueError(e.schema.Name, p.Name, value, uid, other))
			continue
		}
		b.unique[key] = uid

		stored, ok := b.stored[e.schema.Name]
		if !ok {
			var err error
			stored, err = im.store.List(ctx, e.schema.Name)
			if err != nil {
				return err
			}
			b.stored[e.schema.Name] = stored
		}
		for _, other := range stored {
			if other.Base().UID == uid {
				continue
			}
			if v, _ := p.Get(other).(string); v == value {
				e.report.add(uniqueError(e.schema.Name, p.Name, value, uid, other.Base().UID))
				break
			}
		}
	}
	return nil
}

func uniqueError(klass, property, value, uid, other string) ErrorReport {
	r := newError(ErrUniqueConflict, klass, property,
		"Property `%s` with value `%s` on object `%s` already exists on object `%s`", property, value, uid, other)
	r.Value = value
	return r
}

func (im *Importer) commit(ctx context.Context, e *entry) error {
	switch e.action {
	case actionCreate:
		return im.store.Create(ctx, e.obj)
	case actionUpdate:
		return im.store.Update(ctx, e.obj)
	default:
		return im.store.Delete(ctx, e.existing)
	}
}

func (im *Importer) observe(typeName string, strategy Strategy, outcome string) {
	if im.observer != nil {
		im.observer.ObserveImport(typeName, strategy, outcome)
	}
}

func trim(report *Report, mode ReportMode) {
	for _, t := range report.TypeReports {
		if mode != ReportDebug {
			for _, o := range t.ObjectReports {
				for i := range o.ErrorReports {
					o.ErrorReports[i].Value = nil
				}
			}
		}
		if mode == ReportErrors {
			kept := t.ObjectReports[:0]
			for _, o := range t.ObjectReports {
				if o.HasErrors() {
					kept = append(kept, o)
				}
			}
			t.ObjectReports = kept
		}
	}
}
