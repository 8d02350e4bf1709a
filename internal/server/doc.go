// Package server is the thin HTTP shell around the provisioner: a chi router
// exposing POST /provision plus liveness and readiness probes, with request-id,
// recovery, and request-logging middleware. It carries no provisioning logic
// of its own.
package server
