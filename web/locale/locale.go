// Package locale loads the panel's translations and picks one per request.
package locale

import (
	"io/fs"
	"strings"

	"github.com/antarex-ai/dashboard/logger"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

const (
	// LangCookie overrides the browser's Accept-Language.
	LangCookie = "lang"

	localizerKey = "localizer"
)

var (
	i18nBundle *i18n.Bundle
	fallback   *i18n.Localizer
)

// InitLocalizer parses every file under translation/ in fsys. English is the
// default language.
func InitLocalizer(fsys fs.FS) error {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	if err := parseTranslationFiles(fsys, bundle); err != nil {
		return err
	}

	i18nBundle = bundle
	fallback = i18n.NewLocalizer(bundle, language.English.String())
	return nil
}

func parseTranslationFiles(fsys fs.FS, bundle *i18n.Bundle) error {
	return fs.WalkDir(fsys, "translation", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		_, err = bundle.ParseMessageFileBytes(data, path)
		return err
	})
}

// Languages lists the loaded languages, default first.
func Languages() []string {
	if i18nBundle == nil {
		return nil
	}
	tags := i18nBundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// params are "name==value" pairs.
func createTemplateData(params []string) map[string]any {
	data := make(map[string]any, len(params))
	for _, param := range params {
		name, value, _ := strings.Cut(param, "==")
		data[name] = value
	}
	return data
}

// Localize translates key. Unknown keys come back unchanged so a missing
// translation stays visible without breaking the page.
func Localize(localizer *i18n.Localizer, key string, params ...string) string {
	if localizer == nil {
		localizer = fallback
	}
	if localizer == nil {
		return key
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: createTemplateData(params),
	})
	if err != nil {
		logger.Debugf("failed to localize %q: %v", key, err)
		return key
	}
	return msg
}

// LocalizerMiddleware chooses a localizer from the lang cookie, falling back
// to Accept-Language.
func LocalizerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if i18nBundle != nil {
			var langs []string
			if cookie, err := c.Request.Cookie(LangCookie); err == nil && cookie.Value != "" {
				langs = append(langs, cookie.Value)
			}
			langs = append(langs, c.GetHeader("Accept-Language"))
			c.Set(localizerKey, i18n.NewLocalizer(i18nBundle, langs...))
		}
		c.Next()
	}
}

// FromContext returns the request's localizer, nil without the middleware.
func FromContext(c *gin.Context) *i18n.Localizer {
	if v, ok := c.Get(localizerKey); ok {
		localizer, _ := v.(*i18n.Localizer)
		return localizer
	}
	return nil
}

// I18n translates key for the request's language.
func I18n(c *gin.Context, key string, params ...string) string {
	return Localize(FromContext(c), key, params...)
}
