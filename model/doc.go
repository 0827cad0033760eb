// Package model defines the shared vocabulary used throughout respack.
//
// # Container Types
//
//   - Kind: physical layout of a container (Single, BatchCompressed, BatchBlockCompressed)
//   - Compression: stream codec of a batch container (zstd, lz4)
//
// # Content Tiers
//
// Tier orders content sources for override resolution during discovery:
//
//	Core < Application < Mod
//
// Runtime and Network are valid container tiers but never take part in
// descriptor shadowing.
//
// # Platforms
//
// Platform is a bit set. A zero value on a resource means "all platforms".
package model
