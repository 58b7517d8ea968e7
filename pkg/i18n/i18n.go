// Package i18n localizes user facing messages of the service.
package i18n

import (
	"embed"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/active.*.toml
var localeFS embed.FS
var bundle *i18n.Bundle

func init() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, file := range []string{"translations/active.en.toml", "translations/active.de.toml"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			panic(err)
		}
	}
}

type C = i18n.LocalizeConfig
type M = i18n.Message
type Template = map[string]interface{}

// T localizes a message for lang, which may be a raw Accept-Language header value.
// Unknown languages fall back to english.
func T(lang string, c C) string {
	s, _ := i18n.NewLocalizer(bundle, lang).Localize(&c)
	return s
}

// Message is a shortcut for localizing a message by its id.
func Message(lang string, id string, data Template) string {
	return T(lang, C{MessageID: id, TemplateData: data})
}
