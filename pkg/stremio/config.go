package stremio

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is the translation target used when no configuration is given.
const DefaultLanguage = "ar"

// Language describes a supported translation target.
type Language struct {
	// Code is the tag understood by the translation engine.
	Code string
	// Name is the English name.
	Name string
	// Native is the name in the language itself.
	Native string
	// ISO6392 is the three letter code Stremio uses to label subtitle tracks.
	ISO6392 string
	// Flag is shown next to the track name.
	Flag string
}

// Tag returns the BCP 47 tag of the language.
func (l Language) Tag() language.Tag {
	return language.Make(l.Code)
}

var languages = []Language{
	{"ar", "Arabic", "العربية", "ara", "🇸🇦"},
	{"tr", "Turkish", "Türkçe", "tur", "🇹🇷"},
	{"fa", "Persian", "فارسی", "per", "🇮🇷"},
	{"ur", "Urdu", "اردو", "urd", "🇵🇰"},
	{"hi", "Hindi", "हिन्दी", "hin", "🇮🇳"},
	{"bn", "Bengali", "বাংলা", "ben", "🇧🇩"},
	{"id", "Indonesian", "Indonesia", "ind", "🇮🇩"},
	{"ms", "Malay", "Melayu", "may", "🇲🇾"},
	{"th", "Thai", "ไทย", "tha", "🇹🇭"},
	{"vi", "Vietnamese", "Tiếng Việt", "vie", "🇻🇳"},
	{"fr", "French", "Français", "fre", "🇫🇷"},
	{"es", "Spanish", "Español", "spa", "🇪🇸"},
	{"de", "German", "Deutsch", "ger", "🇩🇪"},
	{"it", "Italian", "Italiano", "ita", "🇮🇹"},
	{"pt", "Portuguese", "Português", "por", "🇵🇹"},
	{"ru", "Russian", "Русский", "rus", "🇷🇺"},
	{"ja", "Japanese", "日本語", "jpn", "🇯🇵"},
	{"ko", "Korean", "한국어", "kor", "🇰🇷"},
	{"zh-CN", "Chinese", "中文", "chi", "🇨🇳"},
}

// Languages returns the supported translation targets in display order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// LookupLanguage finds a supported target by code. Matching is case-insensitive
// and accepts both "zh-CN" and "zh_CN" spellings.
func LookupLanguage(code string) (Language, bool) {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(code), "_", "-"))
	if err != nil {
		return Language{}, false
	}
	for _, l := range languages {
		if l.Tag() == tag {
			return l, true
		}
	}
	return Language{}, false
}

// UserConfig holds the per-install preferences encoded in the addon URL.
type UserConfig struct {
	// Lang is the translation target code.
	Lang string `json:"lang"`
	// Android enables the compatibility presentation: BOM and application/x-subrip.
	Android bool `json:"android"`
}

// DefaultUserConfig is used for the unprefixed routes and for undecodable configurations.
func DefaultUserConfig() UserConfig {
	return UserConfig{Lang: DefaultLanguage, Android: true}
}

// Language returns the configured target, or Arabic when the code is not supported.
func (c UserConfig) Language() Language {
	if l, ok := LookupLanguage(c.Lang); ok {
		return l
	}
	l, _ := LookupLanguage(DefaultLanguage)
	return l
}

// Encode returns the URL path segment representing the configuration.
func (c UserConfig) Encode() string {
	b, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(b)
}

// DecodeUserConfig parses a base64 encoded JSON configuration. Missing fields keep their defaults.
func DecodeUserConfig(s string) (UserConfig, error) {
	cfg := DefaultUserConfig()
	if s == "" {
		return cfg, nil
	}

	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err = enc.DecodeString(s); err == nil {
			break
		}
	}
	if err != nil {
		return DefaultUserConfig(), fmt.Errorf("failed to base64.DecodeString: %w", err)
	}

	payload := struct {
		Lang    *string `json:"lang"`
		Android *bool   `json:"android"`
	}{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return DefaultUserConfig(), fmt.Errorf("failed to json.Unmarshal: %w", err)
	}
	if payload.Lang != nil {
		cfg.Lang = *payload.Lang
	}
	if payload.Android != nil {
		cfg.Android = *payload.Android
	}

	cfg.Lang = cfg.Language().Code

	return cfg, nil
}
