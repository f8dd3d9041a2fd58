// Package version reports the build identifier.
package version

// Build holds the build identifier, injected via -ldflags. Default "dev".
var Build = "dev"

// String renders the identifier for a binary's --version output.
func String(binary string) string {
	return binary + " " + Build
}
