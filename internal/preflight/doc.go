// Package preflight provides readiness checks for external services
// and filesystem paths that easel depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup. Failed checks are reported
//     before any queued run can waste minutes against a dead backend.
//   - The CLI "easel status" command reuses the individual check
//     functions to display service health.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
