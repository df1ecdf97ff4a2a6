package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLError reports why a photo, link, or icon URL was rejected.
type URLError struct {
	Field   string
	Message string
	URL     string
}

func (e URLError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// ValidateURL checks that raw is an absolute http(s) URL with a host.
// Empty values pass; presence is the job of the "required" rule.
func ValidateURL(raw, field string, requireHTTPS bool) error {
	if raw == "" {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return URLError{Field: field, Message: "invalid URL format", URL: raw}
	}
	if parsed.Scheme == "" {
		return URLError{Field: field, Message: "URL must include a scheme (http:// or https://)", URL: raw}
	}
	if parsed.Host == "" {
		return URLError{Field: field, Message: "URL must include a host", URL: raw}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if requireHTTPS && scheme != "https" {
		return URLError{Field: field, Message: "URL must use HTTPS", URL: raw}
	}
	if scheme != "http" && scheme != "https" {
		return URLError{Field: field, Message: "URL scheme must be http or https", URL: raw}
	}
	return nil
}
