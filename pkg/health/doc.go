// Package health provides HTTP handlers for health probes.
//
// This package implements liveness and readiness endpoints compatible with
// Docker, Kubernetes, and 3rd-party monitoring services. It integrates with
// healthcheck closures such as the one returned by the db package.
//
// # Main Functions
//
// [LivenessHandler] provides a simple always-OK endpoint for process liveness.
// [ReadinessHandler] executes a set of [Checks] and returns service readiness.
//
// # Quick Start
//
// Register health endpoints on your router:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "database": db.Healthcheck(cfg, user, password),
//	}))
//
// # Response Formats
//
// By default, handlers respond with plain text for compatibility with probes.
// Request JSON by setting Accept: application/json header or ?format=json:
//
//	curl http://localhost:8080/health/ready?format=json
//
// Plain text responses:
//   - 200 OK: "OK"
//   - 503 Service Unavailable: "Service Unavailable"
//
// JSON response structure:
//
//	{
//	  "status": "unhealthy",
//	  "checks": {
//	    "database": {"status": "unhealthy", "error": "connection refused"}
//	  }
//	}
//
// # Configuration Options
//
// Configure timeout and logging:
//
//	r.Get("/health/ready", health.ReadinessHandler(checks,
//	    health.WithTimeout(3*time.Second),
//	    health.WithLogger(logger),
//	))
//
// Checks run in parallel under a shared timeout; a single failing check marks
// the whole response unhealthy.
//
// # Kubernetes Configuration
//
// Example Kubernetes probe configuration:
//
//	livenessProbe:
//	  httpGet:
//	    path: /health/live
//	    port: 8080
//	  initialDelaySeconds: 5
//	  periodSeconds: 10
//
//	readinessProbe:
//	  httpGet:
//	    path: /health/ready
//	    port: 8080
//	  initialDelaySeconds: 5
//	  periodSeconds: 10
//
// # Error Handling
//
// The package defines sentinel errors for consistent error handling:
//
//   - [ErrCheckFailed] - One or more checks failed
//   - [ErrCheckTimeout] - Check exceeded timeout
package health
