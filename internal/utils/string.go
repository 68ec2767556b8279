package utils

// TruncateString shortens the middle of a string, keeping borderSizeToKeep
// characters on each side. Useful for logging tx hashes and addresses.
func TruncateString(str string, borderSizeToKeep int) string {
	if len(str) <= 2*borderSizeToKeep {
		return str
	}
	return str[:borderSizeToKeep] + "..." + str[len(str)-borderSizeToKeep:]
}

// ClampString caps a string at maxLen bytes, dropping the tail. Used to keep
// recorded error messages within storage bounds.
func ClampString(str string, maxLen int) string {
	if maxLen < 0 {
		return str
	}
	if len(str) <= maxLen {
		return str
	}
	return str[:maxLen]
}
