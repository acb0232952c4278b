package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim keys carried by NPS-issued tokens. The server encodes identity with
// .NET claim URIs; bare short names appear on newer releases.
const (
	nameClaimURI = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	roleClaimURI = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// usernameClaims are the candidate keys for a display name, tried in order.
var usernameClaims = []string{nameClaimURI, "unique_name", "sub"}

// roleClaims are the candidate keys for the role claim, tried in order.
var roleClaims = []string{roleClaimURI, "role"}

var claimParser = jwt.NewParser()

// DecodeClaims decodes the claims of a bearer token without verifying its
// signature. TLS plus server-side validation are the security boundary here;
// claims feed display output and refresh scheduling, never access decisions.
// Malformed or non-JWT tokens yield nil rather than an error: every caller is
// doing best-effort diagnostics.
func DecodeClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if _, _, err := claimParser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

// TokenExpiry returns the exp claim as wall-clock time. The zero time means
// the token is not a parseable JWT or carries no expiry.
func TokenExpiry(token string) time.Time {
	claims := DecodeClaims(token)
	if claims == nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Username returns the token's display name, checking each candidate claim
// key in order and returning the first present.
func Username(token string) string {
	claims := DecodeClaims(token)
	if claims == nil {
		return ""
	}
	for _, key := range usernameClaims {
		if s, ok := claims[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// HasAdminRole reports whether the token's role claim, a single string or a
// list of strings, contains "administrator" or "admin" (case-insensitive).
func HasAdminRole(token string) bool {
	claims := DecodeClaims(token)
	if claims == nil {
		return false
	}
	for _, key := range roleClaims {
		switch v := claims[key].(type) {
		case string:
			if isAdminRole(v) {
				return true
			}
		case []any:
			for _, r := range v {
				if s, ok := r.(string); ok && isAdminRole(s) {
					return true
				}
			}
		}
	}
	return false
}

func isAdminRole(role string) bool {
	return strings.EqualFold(role, "administrator") || strings.EqualFold(role, "admin")
}
