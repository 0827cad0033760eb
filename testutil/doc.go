// Package testutil provides deterministic test data for respack packages.
//
// This package is intended for use in tests and benchmarks only.
//
//	rng := testutil.NewRNG(4711)
//	payloads := rng.Payloads(16, "texture", 64, 4096)
//	hot := payloads[rng.Zipf(len(payloads), 1.2)]
package testutil
