// Package token issues and verifies compact signed tokens used in unsubscribe links.
//
// A token is two base64url segments joined by a dot:
//
//	<payload>.<signature>
//
// The payload is the JSON document {"tokenId": "...", "timestamp": <epoch-ms>}
// and the signature is HMAC-SHA256 over the encoded payload segment, keyed with
// the configured secret. Verification is stateless: it checks the signature in
// constant time and rejects tokens older than the configured maximum age before
// any storage lookup happens.
//
// # Usage
//
//	codec, err := token.New(token.Config{Secret: os.Getenv("UNSUBSCRIBE_SECRET")})
//	if err != nil {
//		return err
//	}
//
//	tok, err := codec.Issue(uuid.NewString())
//	...
//	payload, err := codec.Verify(tok)
//	if errors.Is(err, token.ErrInvalidToken) {
//		// reject
//	}
//
// # Errors
//
//   - ErrSecretRequired: codec constructed without a secret
//   - ErrInvalidToken: malformed, tampered or expired token
//   - ErrExpiredToken: token older than MaxAge (also matches ErrInvalidToken)
package token
