// Package preflight provides readiness checks for the filesystem paths Quill
// depends on.
//
// These checks run in two contexts:
//   - bootstrap.Open refuses to start when the data or state directory is
//     unusable, so failures surface before any backup is attempted.
//   - The CLI "quill status" command displays each result.
package preflight
