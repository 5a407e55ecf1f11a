// Package http implements the HTTP handlers of the ranking API. Handlers parse
// and validate the request, call a service and render the result as JSON;
// failures are rendered as RFC 7807 problem details by the shared
// errors.ErrorHandler.
//
// Routes mounted by the application:
//
//	GET  /healthz                      liveness
//	GET  /healthz/ready                readiness, 503 until a ranking exists
//	GET  /version                      build and runtime information
//	GET  /api/v1/ranking               latest ranking (?limit=&sector=&min_score=)
//	GET  /api/v1/ranking/runs          stored runs, newest first (?limit=)
//	GET  /api/v1/ranking/runs/{id}     one stored run with its funds
//	POST /api/v1/ranking/refresh       fetch, rank, export and store a new run
package http
