// Package localization provides functionality for internationalization (i18n).
// It loads translation strings from JSON files and provides a simple way to get
// localized strings for different languages.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed locales/*.json
var bundled embed.FS

// Keys used across the synchronization core and the HTTP surface.
const (
	KeyAuthInvalidEmail     = "auth.invalid_email"
	KeyAuthWrongPassword    = "auth.wrong_password"
	KeyAuthUserNotFound     = "auth.user_not_found"
	KeyAuthNetworkError     = "auth.network_error"
	KeyAuthEmailNotVerified = "auth.email_not_verified"
	KeyAuthEmailInUse       = "auth.email_in_use"
	KeyAuthWeakPassword     = "auth.weak_password"
	KeyAuthInvalidToken     = "auth.invalid_token"
	KeyAuthOther            = "auth.other"
	KeyTypingIndicator      = "typing.indicator"
	KeyNoRecentMessages     = "room.no_recent_messages"
	KeySendFailed           = "notice.send_failed"
	KeyRoomUnavailable      = "notice.room_unavailable"
	KeyEmptyMessage         = "notice.empty_message"
	KeyRoomsUnavailable     = "rooms.unavailable"
)

// Localizer manages the translations for the application.
// It holds a map of languages, each with its own map of translation keys and values.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewLocalizer loads the translations bundled into the binary.
func NewLocalizer() (*Localizer, error) {
	return NewLocalizerFS(bundled, "locales")
}

// NewLocalizerFS loads all translations from dir inside fsys.
// The directory should contain JSON files named with the language code (e.g., "en.json").
func NewLocalizerFS(fsys fs.FS, dir string) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	return l, nil
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it returns the key itself as a fallback.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	// Fallback to a default language if the key is not found in the specified language
	if lang != "en" {
		if enTranslations, ok := l.translations["en"]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}

// Format looks up key and applies fmt.Sprintf with args.
func (l *Localizer) Format(lang, key string, args ...any) string {
	return fmt.Sprintf(l.GetString(lang, key), args...)
}
