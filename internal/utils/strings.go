package utils

// FirstNonEmpty returns the first value that is not the empty string, or ""
// when every candidate is empty. Used for fallback chains such as error
// message extraction and config precedence.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
