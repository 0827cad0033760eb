// Package discovery populates a catalog from tiered content libraries.
//
// A library is a blob store prefix holding container data files and one
// descriptor per container. A scan runs in phases:
//
//   - list: enumerate descriptor files of every library
//   - parse: read, validate and (optionally) repair descriptors in parallel
//   - stage: resolve key collisions by tier precedence in a private map
//   - register: reconcile with the previous scan and publish atomically
//
// Libraries are staged in tier order Core < Application < Mod. A key from a
// higher non-core tier shadows the same key from a lower tier; a key defined
// twice within one tier is rejected with a CollisionError and the first
// definition wins. The catalog is only modified after the whole walk
// succeeded, so consumers never see a partially overwritten catalog.
//
// Scans run synchronously with Scan or in the background with Start, which
// returns a Run that can be cancelled, awaited and polled for progress.
package discovery
