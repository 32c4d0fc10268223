package assistant

import "strings"

// bannedTerms is technical-troubleshooting vocabulary that must never
// appear in advisor replies. Prior assistant turns containing any of
// these are also kept out of the generation context so one bad turn does
// not contaminate the next.
var bannedTerms = []string{
	"api key",
	"apikey",
	"access token",
	"rate limit",
	"token limit",
	"openai",
	"gpt-",
	"gemini",
	"error log",
	"stack trace",
	"error code",
	"troubleshoot",
	"restart",
}

// findBannedTerm returns the first banned term contained in content,
// case-insensitively, or "" when content is clean.
func findBannedTerm(content string) string {
	lower := strings.ToLower(content)
	for _, term := range bannedTerms {
		if strings.Contains(lower, term) {
			return term
		}
	}
	return ""
}
