package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/schema"
	"github.com/FairForge/metaapi/internal/store"
	"github.com/FairForge/metaapi/internal/validation"
)

type box struct{ schema.Identifiable }

func (b *box) TypeName() string { return "box" }

type part struct {
	schema.Identifiable
	Box *box
}

func (p *part) TypeName() string { return "part" }

type counter map[string]int

func (c counter) ObserveImport(typeName string, strategy Strategy, outcome string) {
	c[typeName+"/"+outcome]++
}

type fixture struct {
	importer *Importer
	store    *store.Documents
	observed counter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, store.NewMemory())
}

func newFixtureOn(t *testing.T, backend store.Backend) *fixture {
	t.Helper()
	reg := schema.NewRegistry()
	boxes := schema.New("box", "boxes", func() schema.Object { return &box{} })
	parts := schema.New("part", "parts", func() schema.Object { return &part{} },
		schema.Reference("box", "box", func(p *part) *box { return p.Box }, func(p *part, b *box) { p.Box = b }),
	).Require("name").
		WithAuthority(schema.AuthorityCreatePublic, "F_PART_PUBLIC_ADD").
		WithAuthority(schema.AuthorityCreatePrivate, "F_PART_PRIVATE_ADD").
		WithAuthority(schema.AuthorityExternalize, "F_PART_EXTERNAL")
	parts.Shareable = true
	reg.MustRegister(boxes, parts)

	gate := acl.NewGate(reg, nil, zap.NewNop())
	st := store.NewDocuments(backend, reg, gate, zap.NewNop())
	im := New(st, reg, gate, validation.NewValidator(), zap.NewNop())
	observed := counter{}
	im.SetObserver(observed)
	return &fixture{importer: im, store: st, observed: observed}
}

func newPart(name, code string) *part {
	p := &part{}
	p.UID = schema.GenerateUID()
	p.Name = name
	p.Code = code
	return p
}

func publisher() context.Context {
	return acl.WithActor(context.Background(), &acl.Actor{
		UID:         "usr00000001",
		Username:    "publisher",
		Authorities: []string{"F_PART_PUBLIC_ADD", "F_PART_PRIVATE_ADD"},
	})
}

func nonEmpty(r *Report) int {
	n := 0
	for _, o := range r.ObjectReports() {
		if o.HasErrors() {
			n++
		}
	}
	return n
}

func TestParseParams(t *testing.T) {
	s, err := ParseStrategy("create")
	require.NoError(t, err)
	assert.Equal(t, Create, s)
	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, CreateAndUpdate, s)
	_, err = ParseStrategy("MERGE")
	assert.Error(t, err)

	m, err := ParseAtomicMode("")
	require.NoError(t, err)
	assert.Equal(t, AtomicAll, m)
	_, err = ParseAtomicMode("SOME")
	assert.Error(t, err)

	r, err := ParseReportMode("debug")
	require.NoError(t, err)
	assert.Equal(t, ReportDebug, r)
}

func TestImportCreates(t *testing.T) {
	f := newFixture(t)
	ctx := publisher()
	a, b := newPart("Wheel", "W1"), newPart("Axle", "A1")

	report, err := f.importer.Import(ctx, []schema.Object{a, b}, Params{Strategy: Create, ReportMode: ReportFull})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, report.Status)
	assert.Equal(t, 2, report.Stats.Created)
	assert.Equal(t, 2, report.Stats.Total)
	require.Len(t, report.TypeReports, 1)
	assert.Len(t, report.TypeReports[0].ObjectReports, 2)
	assert.Equal(t, 2, f.observed["part/created"])

	stored, err := f.store.GetNoAcl(ctx, "part", a.UID)
	require.NoError(t, err)
	assert.Equal(t, "usr00000001", stored.Base().Sharing.Owner)
	assert.Equal(t, acl.AccessReadWrite, stored.Base().Sharing.Public)
}

func TestImportGeneratesMissingUID(t *testing.T) {
	f := newFixture(t)
	p := newPart("Bolt", "")
	p.UID = ""

	report, err := f.importer.Import(context.Background(), []schema.Object{p}, Params{Strategy: Create})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Created)
	assert.True(t, schema.IsValidUID(p.UID))
}

func TestImportAtomicAll(t *testing.T) {
	f := newFixture(t)
	ctx := publisher()
	valid, invalid := newPart("Wheel", "W1"), newPart("", "X1")

	report, err := f.importer.Import(ctx, []schema.Object{valid, invalid}, Params{Strategy: Create, AtomicMode: AtomicAll, ReportMode: ReportFull})
	require.NoError(t, err)
	assert.Equal(t, StatusError, report.Status)
	assert.Equal(t, 0, report.Stats.Created)
	assert.Equal(t, 2, report.Stats.Ignored)
	assert.Equal(t, report.Stats.Ignored, nonEmpty(report))

	objects := report.TypeReports[0].ObjectReports
	require.Len(t, objects, 2)
	assert.Equal(t, ErrAtomicAbort, objects[0].ErrorReports[0].Code)
	assert.Equal(t, ErrMissingProperty, objects[1].ErrorReports[0].Code)
	assert.Equal(t, "name", objects[1].ErrorReports[0].Property)

	exists, err := f.store.Exists(ctx, "part", valid.UID)
	require.NoError(t, err)
	assert.False(t, exists)
}

// contendedBackend reports a duplicate for one uid, as when another writer
// inserts it between validation and commit.
type contendedBackend struct {
	store.Backend
	uid string
}

func (b *contendedBackend) Insert(ctx context.Context, typeName, uid string, doc schema.Document) error {
	if uid == b.uid {
		return store.ErrDuplicate
	}
	return b.Backend.Insert(ctx, typeName, uid, doc)
}

func TestImportAtomicAllCommitDuplicate(t *testing.T) {
	first, second := newPart("Wheel", "W1"), newPart("Axle", "A1")
	f := newFixtureOn(t, &contendedBackend{Backend: store.NewMemory(), uid: second.UID})
	ctx := publisher()

	report, err := f.importer.Import(ctx, []schema.Object{first, second}, Params{Strategy: Create, AtomicMode: AtomicAll, ReportMode: ReportErrors})
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, report.Status)
	assert.Equal(t, 1, report.Stats.Created)
	assert.Equal(t, 1, report.Stats.Ignored)

	objects := report.TypeReports[0].ObjectReports
	require.Len(t, objects, 1)
	assert.Equal(t, ErrObjectExists, objects[0].ErrorReports[0].Code)

	// no transaction spans the commit loop, earlier objects stay written
	exists, err := f.store.Exists(ctx, "part", first.UID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestImportAtomicNone(t *testing.T) {
	f := newFixture(t)
	ctx := publisher()
	long := newPart(strings.Repeat("x", 231), "L1")

	report, err := f.importer.Import(ctx, []schema.Object{newPart("Wheel", "W1"), long}, Params{Strategy: Create, AtomicMode: AtomicNone})
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, report.Status)
	assert.Equal(t, 1, report.Stats.Created)
	assert.Equal(t, 1, report.Stats.Ignored)
	assert.Equal(t, 1, f.observed["part/ignored"])

	// ERRORS mode keeps only rejected objects.
	objects := report.TypeReports[0].ObjectReports
	require.Len(t, objects, 1)
	assert.Equal(t, 1, objects[0].Index)
	assert.Equal(t, ErrLengthExceeded, objects[0].ErrorReports[0].Code)
	assert.Contains(t, objects[0].ErrorReports[0].Message, "is 230, but given length was 231")
	assert.Nil(t, objects[0].ErrorReports[0].Value)
}

func TestImportReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := &box{}
	b.UID = schema.GenerateUID()
	inBatch := newPart("Wheel", "W1")
	inBatch.Box = &box{}
	inBatch.Box.UID = b.UID

	dangling := newPart("Axle", "A1")
	dangling.Box = &box{}
	dangling.Box.UID = "zzzzzzzzzzz"

	report, err := f.importer.Import(ctx, []schema.Object{b, inBatch, dangling}, Params{AtomicMode: AtomicNone, ReportMode: ReportDebug})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TypeReport("box").Stats.Created)
	parts := report.TypeReport("part")
	assert.Equal(t, 1, parts.Stats.Created)
	assert.Equal(t, 1, parts.Stats.Ignored)

	errs := parts.ErrorReports()
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidReference, errs[0].Code)
	assert.Equal(t, "box", errs[0].Property)
}

func TestImportUniqueCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.importer.Import(ctx, []schema.Object{newPart("Wheel", "W1")}, Params{Strategy: Create})
	require.NoError(t, err)

	report, err := f.importer.Import(ctx, []schema.Object{newPart("Other wheel", "W1"), newPart("Axle", "A1"), newPart("Axle copy", "A1")},
		Params{Strategy: Create, AtomicMode: AtomicNone, ReportMode: ReportDebug})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Created)
	assert.Equal(t, 2, report.Stats.Ignored)
	for _, e := range report.TypeReport("part").ErrorReports() {
		assert.Equal(t, ErrUniqueConflict, e.Code)
		assert.Equal(t, "code", e.Property)
		assert.NotNil(t, e.Value)
	}
}

func TestImportStrategies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := newPart("Wheel", "W1")
	_, err := f.importer.Import(ctx, []schema.Object{p}, Params{Strategy: Create})
	require.NoError(t, err)
	created, err := f.store.GetNoAcl(ctx, "part", p.UID)
	require.NoError(t, err)

	t.Run("create existing", func(t *testing.T) {
		again := newPart("Wheel", "W2")
		again.UID = p.UID
		report, err := f.importer.Import(ctx, []schema.Object{again}, Params{Strategy: Create})
		require.NoError(t, err)
		assert.Equal(t, ErrObjectExists, report.TypeReport("part").ErrorReports()[0].Code)
	})

	t.Run("update missing", func(t *testing.T) {
		report, err := f.importer.Import(ctx, []schema.Object{newPart("Ghost", "G1")}, Params{Strategy: Update})
		require.NoError(t, err)
		assert.Equal(t, ErrObjectNotFound, report.TypeReport("part").ErrorReports()[0].Code)
	})

	t.Run("update keeps system fields", func(t *testing.T) {
		replacement := newPart("Wheel v2", "W1")
		replacement.UID = p.UID
		report, err := f.importer.Import(ctx, []schema.Object{replacement}, Params{})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Stats.Updated)

		stored, err := f.store.GetNoAcl(ctx, "part", p.UID)
		require.NoError(t, err)
		assert.Equal(t, "Wheel v2", stored.Base().Name)
		assert.True(t, created.Base().Created.Equal(stored.Base().Created))
		assert.Equal(t, created.Base().Sharing.Public, stored.Base().Sharing.Public)
	})

	t.Run("delete", func(t *testing.T) {
		stub := &part{}
		stub.UID = p.UID
		report, err := f.importer.Import(ctx, []schema.Object{stub}, Params{Strategy: Delete})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Stats.Deleted)
		exists, err := f.store.Exists(ctx, "part", p.UID)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestImportAccess(t *testing.T) {
	f := newFixture(t)

	nobody := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000009", Username: "nobody"})
	report, err := f.importer.Import(nobody, []schema.Object{newPart("Wheel", "W1")}, Params{Strategy: Create})
	require.NoError(t, err)
	errs := report.TypeReport("part").ErrorReports()
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNoCreateAccess, errs[0].Code)
	assert.Contains(t, errs[0].Message, "nobody")

	private := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000008", Username: "private", Authorities: []string{"F_PART_PRIVATE_ADD"}})
	p := newPart("Spoke", "S1")
	report, err = f.importer.Import(private, []schema.Object{p}, Params{Strategy: Create})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Created)
	assert.Equal(t, schema.DefaultAccess, p.Sharing.Public)
	assert.Equal(t, "usr00000008", p.Sharing.Owner)

	public := newPart("Rim", "R1")
	public.Sharing.Public = acl.AccessReadOnly
	public.Sharing.External = true
	report, err = f.importer.Import(private, []schema.Object{public}, Params{Strategy: Create})
	require.NoError(t, err)
	codes := []ErrorCode{}
	for _, e := range report.TypeReport("part").ErrorReports() {
		codes = append(codes, e.Code)
	}
	assert.ElementsMatch(t, []ErrorCode{ErrNoPublicAccess, ErrNoExternalAccess}, codes)

	stranger := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000007", Username: "stranger", Authorities: []string{"F_PART_PRIVATE_ADD"}})
	update := newPart("Spoke v2", "S1")
	update.UID = p.UID
	report, err = f.importer.Import(stranger, []schema.Object{update}, Params{Strategy: Update})
	require.NoError(t, err)
	assert.Equal(t, ErrNoUpdateAccess, report.TypeReport("part").ErrorReports()[0].Code)
}

func TestImportTranslations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := newPart("Wheel", "W1")
	_, err := f.importer.Import(ctx, []schema.Object{p}, Params{Strategy: Create})
	require.NoError(t, err)

	report, err := f.importer.ImportTranslations(ctx, p, []schema.Translation{
		{Locale: "fr", Property: "NAME", Value: "Roue"},
		{Locale: "es", Property: "NAME"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusError, report.Status)
	errs := report.TypeReport("part").ErrorReports()
	require.Len(t, errs, 1)
	assert.Equal(t, "value", errs[0].Property)

	stored, err := f.store.GetNoAcl(ctx, "part", p.UID)
	require.NoError(t, err)
	assert.Empty(t, stored.Base().Translations)

	report, err = f.importer.ImportTranslations(ctx, stored, []schema.Translation{{Locale: "fr", Property: "NAME", Value: "Roue"}})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, report.Status)
	stored, err = f.store.GetNoAcl(ctx, "part", p.UID)
	require.NoError(t, err)
	assert.Len(t, stored.Base().Translations, 1)
}

func TestUpdateSharing(t *testing.T) {
	f := newFixture(t)
	p := newPart("Wheel", "W1")
	p.Sharing.Public = schema.DefaultAccess
	_, err := f.importer.Import(context.Background(), []schema.Object{p}, Params{Strategy: Create})
	require.NoError(t, err)

	private := acl.WithActor(context.Background(), &acl.Actor{UID: "usr00000008", Username: "private", Authorities: []string{"F_PART_PRIVATE_ADD"}})

	report, err := f.importer.UpdateSharing(private, p, schema.Sharing{Public: acl.AccessReadWrite})
	require.NoError(t, err)
	assert.Equal(t, ErrNoPublicAccess, report.TypeReport("part").ErrorReports()[0].Code)

	report, err = f.importer.UpdateSharing(private, p, schema.Sharing{
		Public: schema.DefaultAccess,
		Users:  map[string]schema.AccessEntry{"usr00000002": {ID: "usr00000002", Access: "rwx"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ErrInvalidAccess, report.TypeReport("part").ErrorReports()[0].Code)

	report, err = f.importer.UpdateSharing(publisher(), p, schema.Sharing{Public: acl.AccessReadOnly})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, report.Status)
	stored, err := f.store.GetNoAcl(context.Background(), "part", p.UID)
	require.NoError(t, err)
	assert.Equal(t, acl.AccessReadOnly, stored.Base().Sharing.Public)
}
