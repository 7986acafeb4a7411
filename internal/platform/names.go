package platform

import (
	"fmt"
	"regexp"
	"strings"
)

var packageNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// ValidatePackageName rejects anything that is not a plain reverse-domain identifier.
// Names are interpolated into device shell commands, so this is also the quoting guard.
func ValidatePackageName(name string) error {
	if !packageNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidPackageName, name)
	}
	return nil
}

// shellQuote single-quotes s for the device shell
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// labelFromPackageName derives a readable label when the host cannot provide one,
// e.g. "com.example.photo_editor" becomes "Example Photo Editor".
func labelFromPackageName(name string) string {
	skip := map[string]bool{
		"com": true, "net": true, "org": true, "io": true, "android": true, "app": true,
	}

	parts := strings.Split(name, ".")
	var meaningful []string
	for _, p := range parts {
		if !skip[strings.ToLower(p)] && len(p) > 1 {
			meaningful = append(meaningful, p)
		}
	}
	if len(meaningful) == 0 {
		meaningful = parts[len(parts)-1:]
	}

	var words []string
	for _, p := range meaningful {
		for _, w := range strings.FieldsFunc(p, func(r rune) bool { return r == '_' || r == '-' }) {
			words = append(words, strings.ToUpper(w[:1])+w[1:])
		}
	}
	if len(words) == 0 {
		return name
	}
	return strings.Join(words, " ")
}
