package format

// DerefString dereferences a *string, falling back to defaultVal when nil.
func DerefString(s *string, defaultVal string) string {
	if s != nil {
		return *s
	}
	return defaultVal
}

// Ptr returns a pointer to v. Handy for building partial-update payloads.
func Ptr[T any](v T) *T {
	return &v
}
