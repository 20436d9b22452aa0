package log

import (
	"net/url"
	"regexp"
	"strings"
)

// urlPattern finds http(s) URLs embedded in free text such as error
// messages. It stops at whitespace and common closing delimiters.
var urlPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>]+`)

// sensitiveQueryParams are query parameter names whose values are masked.
var sensitiveQueryParams = map[string]bool{
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"id_token":      true,
	"api_key":       true,
	"apikey":        true,
	"key":           true,
	"secret":        true,
	"client_secret": true,
	"password":      true,
	"passwd":        true,
	"pwd":           true,
	"session":       true,
	"sessionid":     true,
	"session_id":    true,
	"sid":           true,
	"signature":     true,
	"sig":           true,
	"auth":          true,
}

// RedactURL masks the password of any userinfo and the values of
// secret-looking query parameters. Anything that does not parse as an
// absolute URL is returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	changed := false
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
		} else {
			u.User = url.User(MaskValue)
		}
		changed = true
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isSensitiveQueryParam(name) {
				q[name] = []string{MaskValue}
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	if !changed {
		return raw
	}
	// url.URL escapes the mask characters; keep the marker readable.
	out := u.String()
	out = strings.ReplaceAll(out, url.QueryEscape(MaskValue), MaskValue)
	out = strings.ReplaceAll(out, url.PathEscape(MaskValue), MaskValue)
	return out
}

// RedactURLs applies RedactURL to every URL found in s and reports whether
// anything was masked.
func RedactURLs(s string) (string, bool) {
	if !strings.Contains(s, "://") {
		return s, false
	}
	changed := false
	out := urlPattern.ReplaceAllStringFunc(s, func(match string) string {
		// "Get https://x/: EOF" style messages end the URL with punctuation.
		trimmed := strings.TrimRight(match, ".,;:)]")
		redacted := RedactURL(trimmed)
		if redacted != trimmed {
			changed = true
		}
		return redacted + match[len(trimmed):]
	})
	return out, changed
}

func isSensitiveQueryParam(name string) bool {
	lower := strings.ToLower(name)
	if sensitiveQueryParams[lower] {
		return true
	}
	return strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret") ||
		strings.Contains(lower, "password")
}
