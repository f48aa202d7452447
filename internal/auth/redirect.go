package auth

import "strings"

// ResolveRedirect picks the post sign-in/sign-out navigation target.
// Same-origin absolute URLs pass through, root-relative paths are
// prefixed with the base, and anything else falls back to the base so
// an attacker-supplied URL cannot redirect off-site.
func ResolveRedirect(target, base string) string {
	if strings.HasPrefix(target, base) {
		return target
	}
	if strings.HasPrefix(target, "/") {
		return base + target
	}
	return base
}
