// Package authority provides the reference HTTP+JSON client for the
// authentication authority consumed by the session manager.
//
// Any transport satisfying the authsession.Authority contract is conformant;
// this client exists so callers against a conventional REST authority need no
// custom glue. Error mapping follows the root taxonomy: transport failures
// wrap ErrAuthorityUnavailable, login rejections wrap ErrInvalidCredentials,
// refresh rejections wrap ErrRefreshRejected.
package authority
