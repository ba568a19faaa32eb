package usecase

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// LocaleStrings is one language's rendering table. Templates use {name}-style
// placeholders; see Formatter for the set each action understands.
type LocaleStrings struct {
	Locale        string                 `yaml:"locale"`
	Direction     string                 `yaml:"direction"`
	EmptyValue    string                 `yaml:"empty_value"`
	ChangeClause  string                 `yaml:"change_clause"`
	ListSeparator string                 `yaml:"list_separator"`
	Templates     map[string]PluralForms `yaml:"templates"`

	tag     language.Tag
	printer *message.Printer
}

type PluralForms struct {
	One   string `yaml:"one"`
	Other string `yaml:"other"`
}

func (p PluralForms) pick(count int) string {
	if count == 1 && p.One != "" {
		return p.One
	}
	return p.Other
}

var requiredTemplates = []string{
	"created", "updated", "deleted", "parameters_changed",
	"items_added", "items_added_named", "items_removed", "items_removed_named",
	"bulk_import", "bulk_import_source", "bulk_delete",
}

// ParseLocaleStrings decodes and checks a YAML locale table.
func ParseLocaleStrings(data []byte) (*LocaleStrings, error) {
	var ls LocaleStrings
	if err := yaml.Unmarshal(data, &ls); err != nil {
		return nil, fmt.Errorf("decode locale table: %w", err)
	}
	tag, err := language.Parse(ls.Locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", ls.Locale, err)
	}
	if ls.ChangeClause == "" {
		return nil, fmt.Errorf("locale %s: change_clause is required", ls.Locale)
	}
	if ls.ListSeparator == "" {
		ls.ListSeparator = ", "
	}
	for _, name := range requiredTemplates {
		if ls.Templates[name].Other == "" {
			return nil, fmt.Errorf("locale %s: template %q is missing", ls.Locale, name)
		}
	}
	ls.tag = tag
	ls.printer = message.NewPrinter(tag)
	return &ls, nil
}

func (ls *LocaleStrings) Tag() language.Tag {
	return ls.tag
}

func (ls *LocaleStrings) formatCount(n int) string {
	return ls.printer.Sprintf("%d", n)
}

// LocaleCatalog resolves a requested locale to the closest available table.
type LocaleCatalog struct {
	tables  []*LocaleStrings
	matcher language.Matcher
}

// LoadLocaleCatalog reads the embedded tables. defaultLocale is used when a
// request names no locale or one that matches nothing.
func LoadLocaleCatalog(defaultLocale string) (*LocaleCatalog, error) {
	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	tables := make([]*LocaleStrings, 0, len(entries))
	for _, e := range entries {
		data, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", e.Name(), err)
		}
		ls, err := ParseLocaleStrings(data)
		if err != nil {
			return nil, err
		}
		tables = append(tables, ls)
	}
	return NewLocaleCatalog(defaultLocale, tables...)
}

func NewLocaleCatalog(defaultLocale string, tables ...*LocaleStrings) (*LocaleCatalog, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("locale catalog: no tables")
	}
	def := language.Make(defaultLocale)
	ordered := make([]*LocaleStrings, 0, len(tables))
	found := false
	for _, t := range tables {
		if t.tag == def {
			ordered = append([]*LocaleStrings{t}, ordered...)
			found = true
			continue
		}
		ordered = append(ordered, t)
	}
	if !found && defaultLocale != "" {
		return nil, fmt.Errorf("locale catalog: default locale %q has no table", defaultLocale)
	}

	tags := make([]language.Tag, len(ordered))
	for i, t := range ordered {
		tags[i] = t.tag
	}
	return &LocaleCatalog{tables: ordered, matcher: language.NewMatcher(tags)}, nil
}

func (c *LocaleCatalog) Lookup(locale string) *LocaleStrings {
	if locale == "" {
		return c.tables[0]
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return c.tables[0]
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return c.tables[0]
	}
	return c.tables[idx]
}
