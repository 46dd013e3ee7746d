// Package auth provides password hashing and JWT issuance for the
// HTTP API. Tokens are HS256-signed with the user id as subject.
package auth
