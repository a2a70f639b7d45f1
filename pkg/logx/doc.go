// Package logx configures runtick's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Hot paths throttled (logx.Limited, rate limiting + suppressed counter)
package logx
