package caption

import (
	"sort"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"github.com/varoOP/tilawa/internal/domain"
	"golang.org/x/net/html"
)

var builtin = map[string]domain.CaptionTemplates{
	"ru": {
		Surah: "📖 <b>Сура {{.Number}} — {{.Arabic}} ({{.Name}})</b>\n" +
			"🎙 {{.Reciter}}\n" +
			"{{.Translation}} · Аятов: {{.Total}}",
		Ayah: "📖 <b>{{.SurahName}} {{.Surah}}:{{.Ayah}}</b>\n" +
			"🎙 {{.Reciter}}\n\n" +
			"<i>{{.Translation}}</i>",
	},
	"uz": {
		Surah: "📖 <b>Sura {{.Number}} — {{.Arabic}} ({{.Name}})</b>\n" +
			"🎙 {{.Reciter}}\n" +
			"{{.Translation}} · Oyatlar: {{.Total}}",
		Ayah: "📖 <b>{{.SurahName}} {{.Surah}}:{{.Ayah}}</b>\n" +
			"🎙 {{.Reciter}}\n\n" +
			"<i>{{.Translation}}</i>",
	},
}

// SurahData is what surah templates can reference. String fields are HTML-escaped.
type SurahData struct {
	Number      int
	Arabic      string
	Name        string
	Reciter     string
	Translation string
	Total       int
}

// AyahData is what ayah templates can reference. String fields are HTML-escaped.
type AyahData struct {
	SurahName   string
	Surah       int
	Ayah        int
	Reciter     string
	Translation string
}

type templates struct {
	surah *template.Template
	ayah  *template.Template
}

// Builder renders captions for every configured language.
type Builder struct {
	fallback  string
	languages []string
	templates map[string]templates
}

// NewBuilder merges overrides on top of the built-in templates. A language
// in overrides may replace one or both templates; a new language must
// provide both.
func NewBuilder(fallback string, overrides map[string]domain.CaptionTemplates) (*Builder, error) {
	sources := make(map[string]domain.CaptionTemplates, len(builtin)+len(overrides))
	for lang, t := range builtin {
		sources[lang] = t
	}
	for lang, t := range overrides {
		merged := sources[lang]
		if t.Surah != "" {
			merged.Surah = t.Surah
		}
		if t.Ayah != "" {
			merged.Ayah = t.Ayah
		}
		sources[lang] = merged
	}

	b := &Builder{
		fallback:  fallback,
		templates: make(map[string]templates, len(sources)),
	}

	for lang, src := range sources {
		if src.Surah == "" || src.Ayah == "" {
			return nil, errors.Errorf("captions for %q need both a surah and an ayah template", lang)
		}

		surah, err := template.New(lang + "/surah").Parse(src.Surah)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s surah template", lang)
		}
		ayah, err := template.New(lang + "/ayah").Parse(src.Ayah)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s ayah template", lang)
		}

		b.templates[lang] = templates{surah: surah, ayah: ayah}
		b.languages = append(b.languages, lang)
	}
	sort.Strings(b.languages)

	if _, ok := b.templates[fallback]; !ok {
		return nil, errors.Errorf("no caption templates for default language %q", fallback)
	}

	return b, nil
}

// Languages returns the languages captions are rendered in, sorted.
func (b *Builder) Languages() []string {
	return b.languages
}

// Default is the language used when a requested one has no captions.
func (b *Builder) Default() string {
	return b.fallback
}

// Resolve maps lang to itself when captions exist for it, and to the default otherwise.
func (b *Builder) Resolve(lang string) string {
	if _, ok := b.templates[lang]; ok {
		return lang
	}
	return b.fallback
}

// Surah renders the surah caption in every language. The translated surah
// name is language independent upstream, so all languages share it.
func (b *Builder) Surah(info *domain.SurahInfo, performer string) (map[string]string, error) {
	result := make(map[string]string, len(b.templates))
	for _, lang := range b.languages {
		caption, err := execute(b.templates[lang].surah, SurahData{
			Number:      info.Number,
			Arabic:      html.EscapeString(info.NameArabic),
			Name:        html.EscapeString(info.Name),
			Reciter:     html.EscapeString(performer),
			Translation: html.EscapeString(info.NameTranslation),
			Total:       info.TotalAyah,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "rendering %s surah caption", lang)
		}
		result[lang] = caption
	}
	return result, nil
}

// Ayah renders the ayah caption in every language with that language's
// translation. A missing translation renders as empty text. Long
// translations are kept whole; splitting them is up to the sender.
func (b *Builder) Ayah(info *domain.AyahInfo, performer string) (map[string]string, error) {
	result := make(map[string]string, len(b.templates))
	for _, lang := range b.languages {
		caption, err := execute(b.templates[lang].ayah, AyahData{
			SurahName:   html.EscapeString(info.SurahName),
			Surah:       info.Surah,
			Ayah:        info.Ayah,
			Reciter:     html.EscapeString(performer),
			Translation: html.EscapeString(info.Translations[lang]),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "rendering %s ayah caption", lang)
		}
		result[lang] = caption
	}
	return result, nil
}

func execute(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
