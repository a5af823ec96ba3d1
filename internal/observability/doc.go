// Package observability provides structured logging, Prometheus metrics, and
// request-scoped context propagation for the arXiv query service.
package observability
