// Package logx configures calcnotify's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - Optional file output JSON-structured
//
// The zero value of Logger is a safe no-op logger, so library types can
// embed one without nil checks.
package logx
