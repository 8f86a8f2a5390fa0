// Package validation checks URLs that come from configuration or from
// request input before paramtrail redirects to them or builds on them.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateTargetURL accepts absolute http/https URLs that are safe to
// redirect to: a host is required and whitespace, control characters,
// quotes and angle brackets are rejected. Query and fragment are allowed.
func ValidateTargetURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	for _, r := range rawURL {
		if r < 0x20 || r == 0x7f || r == ' ' {
			return fmt.Errorf("URL contains whitespace or control characters")
		}
	}
	if i := strings.IndexAny(rawURL, "<>\"'`\\"); i >= 0 {
		return fmt.Errorf("URL contains dangerous character: %c", rawURL[i])
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}

// ValidateBaseURL accepts what ValidateTargetURL accepts plus site-relative
// paths ("/landing?x=1"). Protocol-relative "//host" is rejected.
func ValidateBaseURL(rawURL string) error {
	if strings.HasPrefix(rawURL, "/") && !strings.HasPrefix(rawURL, "//") {
		if i := strings.IndexAny(rawURL, "<>\"'`\\ \t\r\n"); i >= 0 {
			return fmt.Errorf("URL contains dangerous character: %q", rawURL[i])
		}
		return nil
	}
	return ValidateTargetURL(rawURL)
}
