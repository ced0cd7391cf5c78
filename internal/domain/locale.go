package domain

import (
	"net/url"
	"strings"

	"golang.org/x/text/language"
)

const (
	DefaultLocaleTag = "id-ID"
	FallbackRegion   = "US"
	FallbackLanguage = "en"
)

// Locale is a language-REGION pair such as "id-ID".
type Locale struct {
	Language string
	Region   string
}

// ParseLocale reads a language-REGION tag. An empty or unparseable tag yields
// the fallback; a tag without a region takes the fallback's region.
func ParseLocale(raw string, fallback Locale) Locale {
	value := strings.TrimSpace(raw)
	if value == "" {
		return fallback
	}
	tag, err := language.Parse(value)
	if err != nil {
		return fallback
	}
	base, _ := tag.Base()
	region := fallback.Region
	if r, confidence := tag.Region(); confidence == language.Exact {
		region = r.String()
	}
	if region == "" {
		return Locale{Language: base.String(), Region: ""}
	}
	return Locale{Language: base.String() + "-" + region, Region: region}
}

// DefaultLocale returns the locale used when the caller has none.
func DefaultLocale() Locale {
	return ParseLocale(DefaultLocaleTag, Locale{Language: DefaultLocaleTag, Region: "ID"})
}

// LanguageCode is the ISO 639-1 part of the locale ("id" for "id-ID").
func (l Locale) LanguageCode() string {
	code, _, _ := strings.Cut(l.Language, "-")
	return strings.ToLower(code)
}

func (l Locale) String() string {
	return l.Language
}

// Params returns the request parameters every locale-aware call carries.
func (l Locale) Params() url.Values {
	params := url.Values{}
	if l.Language != "" {
		params.Set("language", l.Language)
	}
	if l.Region != "" {
		params.Set("region", l.Region)
		params.Set("watch_region", l.Region)
	}
	return params
}
