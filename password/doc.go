// Package password hashes registration passwords with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The registration engine stores the encoded string as the opaque
// credential handed to the account materializer. Verify exists for account
// stores that authenticate against it later.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goSignup package.
//   - Log plaintext passwords.
package password
