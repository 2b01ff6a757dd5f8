// Package auth implements the relay's token gate.
//
// Gate covers two operations: issuing a token for the single configured
// admin identity (login) and validating a presented token (every gated
// request and connection). Two interchangeable policies exist:
//
//   - static: the token is the shared secret itself; validation is equality.
//   - signed: tokens carry the subject and an absolute expiry, authenticated
//     with HMAC-SHA256 over the shared secret. Expired or tampered tokens
//     are invalid. There is no rotation — changing the secret invalidates
//     every outstanding token.
//
// ResolveToken extracts the candidate token from a request: explicit query
// parameter first, then a bearer Authorization header, then the token
// cookie.
package auth
