// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read/write/sync capabilities
//   - [FileSystem]: filesystem operations (open, remove, rename, readdir, ...)
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility that injects open, read, write, sync and close
//     failures into container and descriptor I/O
//
// Tests can inject [FaultyFS] into a local blob store to simulate a corrupt
// or unreadable container:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("textures.rpak", fs.Fault{FailOnRead: true})
//	store := blobstore.NewLocalStore(root, blobstore.WithFileSystem(ffs))
//
// Filesystem operations take no context.Context: they are short and not
// interruptible at the syscall level. Remote stores in package blobstore
// carry contexts instead.
package fs
