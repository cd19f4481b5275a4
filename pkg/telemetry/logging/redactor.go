package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Attribute keys whose values are never safe to log verbatim.
var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"authorization": {},
	"token":         {},
	"access_token":  {},
	"client_secret": {},
}

var (
	authHeaderPattern = regexp.MustCompile(`(?i)\b(bearer|basic)\s+[A-Za-z0-9._~+/=-]+`)
	secretKeyPattern  = regexp.MustCompile(`\bsk-[A-Za-z0-9-]{8,}\b`)
)

// redactAttr is the slog ReplaceAttr hook. Sensitive keys are masked
// whole; free-form strings are scanned for credential-shaped values.
func redactAttr(groups []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		a.Value = slog.StringValue(Mask(a.Value.String()))
		return a
	}
	if a.Value.Kind() == slog.KindString {
		a.Value = slog.StringValue(RedactString(a.Value.String()))
	}
	return a
}

// Mask keeps a short prefix so operators can tell credentials apart
// without the log retaining them.
func Mask(s string) string {
	if len(s) <= 4 {
		return "***"
	}
	return s[:4] + "***"
}

// RedactString scrubs credential-shaped substrings from free-form text.
func RedactString(s string) string {
	s = authHeaderPattern.ReplaceAllStringFunc(s, func(m string) string {
		scheme, _, _ := strings.Cut(m, " ")
		return scheme + " ***"
	})
	return secretKeyPattern.ReplaceAllString(s, "sk-***")
}
