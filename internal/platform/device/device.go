// Package device condenses User-Agent strings into short client descriptions
// for audit records. Raw User-Agent values are too volatile and too
// identifying to persist as-is.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Describe extracts a human-readable client description from a User-Agent
// string, in the form "Browser on OS" (e.g. "Chrome on macOS", "Safari on
// iPhone").
func Describe(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Client"
	}

	ua := useragent.New(userAgentString)

	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}

	return strings.TrimSpace(browser + " on " + os)
}
