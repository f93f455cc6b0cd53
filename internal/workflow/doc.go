// Package workflow runs the land-cover pipeline end to end and answers the
// queries made against its committed state.
//
// Responsibilities: training followed by per-year classification, the
// atomic session commit, year selection, and the zonal, change, trend and
// inspection queries. Key types: Engine, Options, Recorder.
//
// Dependency rule: workflow composes the domain packages and the session.
// Storage is reached only through the Recorder interface; HTTP and CLI
// concerns live in api and cmd.
package workflow
