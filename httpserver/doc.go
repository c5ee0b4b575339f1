// Package httpserver provides the HTTP API for the secure image backend.
//
// The server exposes the wallet authentication flow (register, challenge,
// login, check), the image store and retrieve pipelines, and record
// listings, plus the usual operational endpoints:
//
//   - /livez, /readyz for health checking
//   - /drain, /undrain for load balancer rotation
//   - /debug (optional) for pprof profiling
//   - Prometheus metrics on a dedicated listen address
//
// Authentication endpoints are public; pipeline and record endpoints
// require a bearer token issued by the login flow. The store pipeline is
// additionally restricted to the admin role.
//
// Error responses carry the shared JSON envelope and map the internal error
// taxonomy onto HTTP statuses: validation 400, conflict 409, auth and
// integrity failures 401, not found 404, upstream dependency failures 502.
package httpserver
