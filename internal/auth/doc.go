// Package auth handles accounts, password hashing and JWT access
// tokens.
//
// Three roles gate the API: viewers read, operators additionally drive
// hardware and acknowledge alerts, admins manage everything. Passwords
// are hashed with Argon2id in PHC format; access tokens are HS256 JWTs
// validated by signature alone.
package auth
