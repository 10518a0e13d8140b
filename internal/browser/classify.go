package browser

import (
	"regexp"
	"strings"

	"github.com/sells-group/apply-cli/internal/resilience"
)

type pattern struct {
	category resilience.Category
	re       *regexp.Regexp
}

func matcher(alternatives ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + strings.Join(alternatives, "|"))
}

// Checked in order; the first match wins. Manual-intervention categories
// come first so a page showing both a CAPTCHA and a required field is not
// retried. Authentication only matches whole phrases and status codes: tool
// errors routinely quote button labels ("Sign in with LinkedIn") and element
// refs ("s1e401").
var toolErrorPatterns = []pattern{
	{resilience.CategoryCaptcha, matcher(`\b(?:re|h)?captcha\b`, `are you a robot`, `verify you are human`)},
	{resilience.CategoryAuthentication, matcher(
		`session (?:has )?expired`,
		`please (?:sign|log) ?in`,
		`(?:sign|log) ?in (?:again|to continue|required)`,
		`you must (?:sign|log) ?in`,
		`login required`, `not logged in`, `authentication required`,
		`\bunauthori[sz]ed\b`,
		`\b(?:http|status|code|error)\s*:?\s*401\b`,
	)},
	{resilience.CategoryFormValidation, matcher(
		`this field is required`, `invalid email`, `file size too large`,
		`unsupported file type`, `invalid format`, `validation (?:error|failed)`,
	)},
	{resilience.CategoryElementNotFound, matcher(
		`element not found`, `no element`, `could not find`, `unable to find`,
		`not visible`, `stale element`, `no node found`,
	)},
	{resilience.CategoryTimeout, matcher(`timeout`, `timed out`, `navigation took too long`)},
	{resilience.CategoryNetwork, matcher(
		`net::err_`, `\bnetwork\b`, `connection refused`, `connection reset`,
		`\bdns\b`, `socket hang up`, `econnrefused`, `no tab is connected`, `websocket`,
	)},
}

// ClassifyToolError maps the text of a failed tool call to a taxonomy error.
// Unrecognised text becomes an unknown-category error.
func ClassifyToolError(text string) error {
	msg := strings.TrimSpace(text)
	if msg == "" {
		msg = "browser tool failed"
	}
	for _, p := range toolErrorPatterns {
		if !p.re.MatchString(msg) {
			continue
		}
		switch p.category {
		case resilience.CategoryFormValidation:
			return resilience.NewFormValidationError(msg, "")
		case resilience.CategoryElementNotFound:
			return resilience.NewElementNotFoundError(msg, "")
		default:
			return resilience.NewError(p.category, msg)
		}
	}
	return resilience.NewError(resilience.CategoryUnknown, msg)
}
