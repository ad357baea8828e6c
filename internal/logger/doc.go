// Package logger wraps zap for the build tool:
//   - a global sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Services take the logger from the context so every entry of one assembly run
// carries the same name and fields.
package logger
