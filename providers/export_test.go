package providers

import "testing"

// SetGutenbergTextURLsForTest swaps the package-level mirror URL templates
// for the duration of t, restoring the originals on cleanup. Lets tests
// point the connector at an httptest server instead of gutenberg.org.
func SetGutenbergTextURLsForTest(t *testing.T, urls []string) {
	t.Helper()
	original := gutenbergTextURLs
	gutenbergTextURLs = urls
	t.Cleanup(func() { gutenbergTextURLs = original })
}
