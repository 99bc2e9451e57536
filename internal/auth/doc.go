// Package auth provides bearer token authentication and authorisation for
// the factory data service.
//
// Tokens are HS256 JWTs. The subject identifies the factory admin stored on
// every record and history entry; the role selects a static permission set:
//   - viewer: search and read
//   - operator: viewer plus provisioning
//   - admin: operator plus vehicle update and decommissioning
package auth
