// Package server implements the HTTP API for monitoring and management.
// It exposes session state, service statistics, Prometheus metrics and
// control endpoints, plus the stored recording as a WAV download.
package server
