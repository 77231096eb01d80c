// Package i18n resolves message keys into localised, user facing text.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	goi18n "github.com/iota-uz/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/noah-isme/docflow-api/pkg/apperror"
)

//go:embed locales/*.json
var localeFS embed.FS

const unexpectedFallback = "An unexpected error occurred."

// Translator localises message keys for a requested language.
type Translator struct {
	bundle   *goi18n.Bundle
	fallback language.Tag
}

// NewTranslator loads the embedded locale catalogues. defaultLocale is used when the
// caller's languages are not supported.
func NewTranslator(defaultLocale string) (*Translator, error) {
	fallback := language.English
	if strings.TrimSpace(defaultLocale) != "" {
		tag, err := language.Parse(defaultLocale)
		if err != nil {
			return nil, fmt.Errorf("invalid default locale: %w", err)
		}
		fallback = tag
	}

	bundle := goi18n.NewBundle(fallback)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		content, err := localeFS.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(content, path.Base(file)); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", file, err)
		}
	}

	return &Translator{bundle: bundle, fallback: fallback}, nil
}

// Translate resolves key for the Accept-Language value. Unknown keys resolve to the
// generic unexpected error message, never to the raw key.
func (t *Translator) Translate(acceptLanguage, key string) string {
	localizer := goi18n.NewLocalizer(t.bundle, acceptLanguage, t.fallback.String())

	message, err := localizer.Localize(&goi18n.LocalizeConfig{MessageID: key})
	if err == nil && message != "" {
		return message
	}

	message, err = localizer.Localize(&goi18n.LocalizeConfig{MessageID: apperror.KeyUnexpected})
	if err != nil || message == "" {
		return unexpectedFallback
	}
	return message
}
