// Package services implements the hosted backend over HTTP.
//
// # Client
//
// [Client] is the shared transport. Every request carries the project's anon key in the
// apikey header and a bearer token from an [oauth2.TokenSource]. When no user is signed
// in the anon key doubles as the bearer. Requests pass through a [rate.Limiter] and are
// counted by status class.
//
// # REST store
//
// [RESTStore] implements [store.Store] against PostgREST:
//   - Select: GET /rest/v1/<collection>?col=eq.value&order=col.desc&limit=n
//   - Insert: POST /rest/v1/<collection> with a JSON object
//   - Delete: DELETE /rest/v1/<collection>?col=eq.value
//
// Non-2xx JSON bodies become [*store.Error] with the server's code. Transport failures
// become [*store.Error] with [store.CodeNetwork].
//
// # Auth service
//
// [AuthService] speaks GoTrue: signup, password and refresh token grants, logout.
// Failures wrap [shared.ErrAuthFailed] with the server's message.
package services
