// Package mmap provides read-only memory-mapped access to container files.
//
// Single-resource containers are served as byte-range reads straight out of
// the mapping, and batch containers are decompressed from it without an
// intermediate read buffer.
//
//	m, err := mmap.Open("core/textures/ui.rpak")
//	if err != nil { ... }
//	defer m.Close()
//	raw := m.Bytes()
//
// Unix uses mmap(2) via golang.org/x/sys/unix; Windows uses
// CreateFileMapping/MapViewOfFile via golang.org/x/sys/windows.
//
// Mapping is safe for concurrent reads. Close is idempotent, but callers must
// stop using slices returned by Bytes before calling it.
package mmap
