package tissvalidator

// Known setting keys. Rules bound to a key are skipped when the key is
// explicitly set to false.
const (
	SettingCheckFutureDates    = "checkFutureDates"
	SettingCheckNegativeValues = "checkNegativeValues"
)

// Settings holds caller-supplied boolean toggles.
// A key that is absent means "enabled", so new rules never get silently
// disabled by an older settings payload.
type Settings map[string]bool

// DefaultSettings returns settings with every known toggle on.
func DefaultSettings() Settings {
	return Settings{
		SettingCheckFutureDates:    true,
		SettingCheckNegativeValues: true,
	}
}

// Enabled reports whether the toggle is on. Empty keys are always on.
func (s Settings) Enabled(key string) bool {
	if key == "" || s == nil {
		return true
	}
	on, ok := s[key]
	if !ok {
		return true
	}
	return on
}

// With returns a copy of s with key set to on.
func (s Settings) With(key string, on bool) Settings {
	out := make(Settings, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[key] = on
	return out
}
