// Package swm mirrors local vehicle lifecycle changes into SWM, the external
// vehicle-management system.
//
// Every call authenticates with a session token held by a SessionCache. The
// token is reissued by logging in once it is older than the configured TTL,
// or after SWM answers 401. Calls are made once; the caller decides what a
// failure means for the local change.
//
// Error classification:
//   - apperr.ErrSessionNull when no session could be obtained
//   - apperr.ErrSwmCreate, ErrSwmUpdate or ErrSwmDelete for transport,
//     status and decoding failures of the respective operation
package swm
