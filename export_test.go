package evcompat

// ResetForTesting clears the process-wide base and any log suppression so a
// test can run Initialize from scratch. Only the test binary sees it.
func ResetForTesting() {
	currentBase = nil
	suppressSubstring = ""
}
