package analyzer

import (
	"regexp"
	"strings"
)

var (
	trackingParamRe = regexp.MustCompile(`(?i)[?&](utm_[a-z]+|trk|trackingid|li_fat_id|rcm)=[^\s&]*`)
	spaceRunRe      = regexp.MustCompile(`[ \t]+`)
	newlineRunRe    = regexp.MustCompile(`\n{3,}`)
)

// CleanPostText normalizes scraped post text: tracking URL parameters are
// stripped and whitespace is collapsed. The transform is semantics-preserving
// and idempotent; cleaned text is always derivable from raw text.
func CleanPostText(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = trackingParamRe.ReplaceAllStringFunc(s, func(m string) string {
		// Keep a bare "?" separator only if more params follow; dropping the
		// pair entirely is safe because the next pass re-runs to a fixpoint.
		if strings.HasPrefix(m, "?") {
			return "?"
		}
		return ""
	})
	s = strings.ReplaceAll(s, "?&", "?")
	s = trimDanglingQueries(s)

	s = spaceRunRe.ReplaceAllString(s, " ")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// trimDanglingQueries removes a trailing "?" left on a URL after every
// tracking parameter was stripped.
func trimDanglingQueries(s string) string {
	fields := strings.Split(s, " ")
	for i, f := range fields {
		if strings.Contains(f, "://") && strings.HasSuffix(f, "?") {
			fields[i] = strings.TrimSuffix(f, "?")
		}
	}
	return strings.Join(fields, " ")
}
