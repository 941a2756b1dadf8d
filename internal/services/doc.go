// Package services defines shared utilities consumed by the publishing
// pipeline and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp message IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification uniform across render, platform, and storage code.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
