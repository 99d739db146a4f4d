// Package manifest loads and validates the project description consumed by
// the rendering pipeline.
//
// A project root holds manifest.json plus the chapter media it references.
// Load never touches anything but the manifest file; whether referenced media
// exists is checked later, per chapter, by the renderer.
package manifest
