package usecase

import (
	"strings"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

const DefaultNameThreshold = 5

// Formatter renders log entry summaries. It performs no I/O; all language
// comes from the locale catalog.
type Formatter struct {
	catalog       *LocaleCatalog
	nameThreshold int
}

func NewFormatter(catalog *LocaleCatalog, nameThreshold int) *Formatter {
	if nameThreshold < 0 {
		nameThreshold = DefaultNameThreshold
	}
	return &Formatter{catalog: catalog, nameThreshold: nameThreshold}
}

func (f *Formatter) Format(kind domain.ActionKind, p domain.Payload) (string, error) {
	if err := kind.Validate(); err != nil {
		return "", err
	}
	ls := f.catalog.Lookup(p.Locale)

	switch kind {
	case domain.ActionParametersChanged:
		clauses := make([]string, 0, len(p.Changes))
		for _, c := range p.Changes {
			clauses = append(clauses, render(ls.ChangeClause, map[string]string{
				"label": c.Label,
				"from":  displayValue(ls, c.OriginalValue),
				"to":    displayValue(ls, c.CurrentValue),
			}))
		}
		return render(ls.Templates["parameters_changed"].pick(len(clauses)), map[string]string{
			"changes": strings.Join(clauses, ls.ListSeparator),
			"count":   ls.formatCount(len(clauses)),
		}), nil

	case domain.ActionItemsAdded, domain.ActionItemsRemoved:
		count := p.Count
		if count == 0 {
			count = len(p.Items)
		}
		name := string(kind)
		vars := map[string]string{"count": ls.formatCount(count)}
		if names := itemNames(p.Items); len(names) > 0 && count <= f.nameThreshold {
			name += "_named"
			vars["names"] = strings.Join(names, ls.ListSeparator)
		}
		return render(ls.Templates[name].pick(count), vars), nil

	case domain.ActionBulkImport:
		name := "bulk_import"
		if p.Source != "" {
			name = "bulk_import_source"
		}
		return render(ls.Templates[name].pick(p.Count), map[string]string{
			"count":  ls.formatCount(p.Count),
			"source": p.Source,
		}), nil

	case domain.ActionBulkDelete:
		return render(ls.Templates["bulk_delete"].pick(p.Count), map[string]string{
			"count": ls.formatCount(p.Count),
		}), nil

	default:
		return render(ls.Templates[string(kind)].Other, map[string]string{"name": p.Name}), nil
	}
}

func itemNames(items []domain.ItemRef) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		switch {
		case it.Name != "":
			names = append(names, it.Name)
		case it.ID != "":
			names = append(names, it.ID)
		}
	}
	return names
}

func displayValue(ls *LocaleStrings, v any) string {
	s := canonicalValue(v)
	if s == "" {
		return ls.EmptyValue
	}
	return s
}

func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
