// Package logx is a small structured-logging wrapper over zerolog.
//
// It exists to keep two properties across the codebase:
//   - Loggers handed to services stay "live" when the logging config is
//     reloaded at runtime (Service.Apply swaps sinks atomically).
//   - Call sites use a compact Field API instead of zerolog's builder chain.
//
// Sinks:
//   - Console (human-friendly writer)
//   - File (JSON lines, append-only)
package logx
