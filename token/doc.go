// Package token inspects access tokens without verifying them.
//
// The session manager trusts the authority's reported expiry when it has one;
// the token's own exp claim is only the fallback bookkeeping source. Nothing
// here performs signature verification, and nothing here must ever gate an
// authorization decision.
package token
