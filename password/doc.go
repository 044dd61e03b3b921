// Package password implements Argon2id password hashing in PHC string
// format. Hashes carry their own parameters, so parameter upgrades apply
// transparently to new hashes while old hashes stay verifiable.
package password
