// Package jwt manages bearer-token issuance and verification using configured
// signing keys and strict validation semantics. Verification is side-effect
// free and never consults the session store; the engine couples verified
// tokens to revocation state separately, through the jti claim.
package jwt
