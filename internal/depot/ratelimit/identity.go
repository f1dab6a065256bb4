package ratelimit

import (
	"net"
	"strings"
)

// credentialPrefixLen bounds how much of a bearer credential keys the window.
// Using a prefix keeps full credentials out of limiter state and logs.
const credentialPrefixLen = 12

// Identity derives the rate-limit key for a caller: the bearer credential
// prefix when an Authorization header is present, otherwise the host portion
// of the remote network address.
func Identity(authorizationHeader, remoteAddr string) string {
	header := strings.TrimSpace(authorizationHeader)
	if token := strings.TrimPrefix(header, "Bearer "); token != header {
		token = strings.TrimSpace(token)
		if len(token) > credentialPrefixLen {
			token = token[:credentialPrefixLen]
		}
		if token != "" {
			return "credential:" + token
		}
	}

	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return "address:" + host
	}
	return "address:" + remoteAddr
}
