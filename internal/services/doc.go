// Package services defines shared utilities consumed by the pipeline stages
// and external process integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, project IDs, stage names, and chapter
//     indexes for logging.
//   - The typed failure taxonomy (ManifestError, RenderError, AssemblyError,
//     CleanupWarning) plus sentinel markers usable with errors.Is.
//   - The Wrap helper for stage-tagged errors outside that taxonomy.
package services
