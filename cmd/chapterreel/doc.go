// Package main hosts the chapterreel CLI entrypoint and command graph.
//
// `chapterreel <project-root>` renders every chapter of a project and
// assembles them into a single video. Supporting commands preview the
// expected timeline (plan), inspect past runs (history), verify the
// environment (check), sweep abandoned scratch space (clean), and scaffold
// configuration (config).
//
// Keep this package lean: the pipeline lives in internal packages and the
// commands here only resolve configuration, wire dependencies, and render
// results for the terminal.
package main
