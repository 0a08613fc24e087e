package utils

import "regexp"

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@/]+)(@)`)

// MaskDSN hides the password portion of a connection string for logging.
func MaskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskToken truncates a credential to its first four characters for logging.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return "***"
	}
	return token[:4] + "***"
}
