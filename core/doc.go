// Package core defines the shared data model of the pipeline: conversation
// messages, per-branch run configuration, the raw execution events produced
// by stage executors and the protocol events delivered to clients. All types
// here are plain values; behavior lives in the router, translate, runner and
// compare packages.
package core
