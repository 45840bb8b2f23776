// Package main hosts the lectern CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the lecternd daemon: segment status lookups, pipeline controls
// (start, approve, abort, redo), worker callbacks for scripted testing, job
// inspection, and configuration scaffolding. It centralizes configuration
// resolution and socket discovery so subcommands can focus on presentation.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
