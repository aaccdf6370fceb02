package reply

import "strings"

var affirmatives = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "sure": {}, "ok": {}, "okay": {},
}

// IsAffirmative true для "yes", "y", "yeah", "yep", "sure", "ok", "okay"
// без учёта регистра и пробелов по краям.
func IsAffirmative(text string) bool {
	_, ok := affirmatives[strings.ToLower(strings.TrimSpace(text))]
	return ok
}
