package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/schema"
)

// ValidateTranslations checks that every entry names a locale, a property
// and a value.
func ValidateTranslations(klass string, translations []schema.Translation) []ErrorReport {
	var out []ErrorReport
	for i, t := range translations {
		if t.Locale == "" {
			out = append(out, newError(ErrMissingProperty, klass, "locale", "Missing required property `locale` in translation %d", i))
		}
		if t.Property == "" {
			out = append(out, newError(ErrMissingProperty, klass, "property", "Missing required property `property` in translation %d", i))
		}
		if t.Value == "" {
			out = append(out, newError(ErrMissingProperty, klass, "value", "Missing required property `value` in translation %d", i))
		}
	}
	return out
}

// ImportTranslations replaces the translations of obj. Nothing is stored
// unless every entry is valid.
func (im *Importer) ImportTranslations(ctx context.Context, obj schema.Object, translations []schema.Translation) (*Report, error) {
	s, err := im.registry.SchemaOf(obj)
	if err != nil {
		return nil, err
	}
	report := NewReport()
	t := report.TypeReport(s.Name)
	or := &ObjectReport{Klass: s.Name, UID: obj.Base().UID, DisplayName: obj.Base().Name}
	t.ObjectReports = append(t.ObjectReports, or)

	if errs := ValidateTranslations(s.Name, translations); len(errs) > 0 {
		or.add(errs...)
		t.Stats.Ignored++
		report.finish()
		return report, nil
	}
	if err := im.store.UpdateTranslations(ctx, obj, translations); err != nil {
		return nil, err
	}
	t.Stats.Updated++
	report.finish()
	return report, nil
}

// UpdateSharing replaces the sharing block of obj. Access strings the actor
// may not set are reported, not stored.
func (im *Importer) UpdateSharing(ctx context.Context, obj schema.Object, sharing schema.Sharing) (*Report, error) {
	s, err := im.registry.SchemaOf(obj)
	if err != nil {
		return nil, err
	}
	actor, _ := acl.FromContext(ctx)
	base := obj.Base()
	if sharing.Owner == "" {
		sharing.Owner = base.Sharing.Owner
	}
	if sharing.Public == "" {
		sharing.Public = schema.DefaultAccess
	}

	report := NewReport()
	t := report.TypeReport(s.Name)
	or := &ObjectReport{Klass: s.Name, UID: base.UID, DisplayName: base.Name}
	t.ObjectReports = append(t.ObjectReports, or)

	previous := base.Sharing
	if errs := im.sharingErrors(actor, s, sharing, &previous); len(errs) > 0 {
		or.add(errs...)
		t.Stats.Ignored++
		report.finish()
		return report, nil
	}

	base.Sharing = sharing
	if err := im.store.Update(ctx, obj); err != nil {
		return nil, err
	}
	t.Stats.Updated++
	report.finish()
	im.logger.Debug("sharing updated",
		zap.String("type", s.Name),
		zap.String("uid", base.UID),
		zap.String("public", sharing.Public))
	return report, nil
}
