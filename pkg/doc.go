// Package pkg provides shared utilities for the usbep endpoint layer.
//
// This package contains common functionality used across the endpoint,
// transfer, and buffer packages, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for protocol and configuration conditions
//   - Component identifiers for log filtering
//   - The [Response] handshake result type used by bench drivers
//
// # Logging
//
// The logging subsystem wraps [log/slog] with endpoint-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogDebug(pkg.ComponentEndpoint, "packet accepted", "bytes", n)
//
// # Errors
//
// Common conditions are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrOverrun) {
//	    // Handle buffer overrun
//	}
package pkg
