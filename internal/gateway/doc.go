// Package gateway is the sole HTTP boundary to the finance API.
//
// # Responsibilities
//
//   - Builds and sends all requests (list, get, create, update, delete,
//     restore, status transitions) with bearer authentication.
//   - Normalizes the API's two historical collection shapes (bare JSON
//     array, or an envelope object keyed by the plural name with a count)
//     into entity.Collection before anything else sees the payload.
//   - Classifies failures into the sentinel errors ErrNetworkFailure,
//     ErrTimeout, ErrAuthenticationExpired, ErrValidationRejected and
//     ErrServerFault; APIError carries status and body alongside.
//
// # Re-authentication
//
// A 401 triggers one transparent token refresh followed by one retry of
// the original request; a second 401, or a failed refresh, surfaces
// ErrAuthenticationExpired. JWT bearers with a readable exp claim are
// refreshed proactively before they ever hit the API.
//
// Policy provides bounded exponential backoff for callers that retry
// transient failures; the gateway itself never retries beyond the 401
// path.
package gateway
