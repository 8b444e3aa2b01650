// Package disposable answers whether a domain belongs to a known
// disposable/temporary email provider. The list is embedded at build time.
package disposable

import "strings"

// IsDisposable returns whether the given domain is a known disposable domain.
func IsDisposable(domain string) bool {
	_, ok := disposableSet[strings.ToLower(domain)]
	return ok
}
