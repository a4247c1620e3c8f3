// Package app assembles the service: configuration, logging, tracing,
// the pipeline engine with its providers, the HTTP router, and the
// lifecycle of the process from startup to graceful shutdown.
package app
