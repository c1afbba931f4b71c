package common

import (
	"errors"
	"fmt"

	"github.com/ogero/stremio-autoarabic/pkg/stremio"
)

// ValidateSubtitleType checks if the subtitle type is valid.
// It expects 'movie' and 'series' as valid types.
func ValidateSubtitleType(t string) error {
	if t != "movie" && t != "series" {
		return errors.New("invalid subtitle type, only movie and series are supported")
	}

	return nil
}

// ValidateTargetLanguage checks that code is one of the supported translation targets.
func ValidateTargetLanguage(code string) error {
	if _, ok := stremio.LookupLanguage(code); !ok {
		return fmt.Errorf("unsupported target language %q", code)
	}

	return nil
}
