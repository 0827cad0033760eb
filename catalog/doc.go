// Package catalog is the registry of resources and the containers that
// back them.
//
// Every resource is addressed by a Handle: an immutable description (key,
// type, byte range inside its container, dependency keys) plus a load-state
// machine:
//
//	NotLoaded -> Queued -> Loading -> Loaded
//
// Any failure while Queued or Loading reverts the handle to NotLoaded so the
// load can be retried. A loaded handle owns exactly one realized Resource;
// replacing or unloading it disposes the previous instance, and disposing the
// resource from outside forces the handle back to NotLoaded.
//
// # Importers
//
// Resource types are realized by importers registered per type tag. An
// importer decodes the container bytes into an intermediate value and
// constructs the final Resource from it:
//
//	cat.Importers().Register("texture", catalog.NewImporter(decodePNG, newTexture))
//
// # Concurrency
//
// Lookups and iteration read an immutable snapshot of the indexes and never
// block. Structural changes (add, remove) are serialized and publish a new
// snapshot atomically. Asynchronous loads are handed to an import queue;
// without one, they run inline.
package catalog
