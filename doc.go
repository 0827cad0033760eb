// Package respack provides a runtime resource catalog for packaged game
// assets.
//
// Content ships as containers: single files holding one resource, or
// compressed batches holding many. Each container is described by a
// descriptor listing the resources it holds, their ranges and their
// dependencies. Discovery scans tiered libraries (core, application, mods,
// network) for descriptors and publishes the result into a catalog, where
// every resource is reachable through a stable Handle. Higher tiers shadow
// lower ones key by key.
//
// # Quick Start
//
//	ctx := context.Background()
//	assets, _ := respack.Open(ctx, []discovery.Library{
//	    {Tier: model.TierCore, Store: blobstore.NewLocalStore("./assets/core")},
//	    {Tier: model.TierMod, Store: blobstore.NewLocalStore("./mods")},
//	}, respack.WithImporter("texture", textureImporter))
//	defer assets.Close(ctx)
//
//	tex, err := respack.Resource[*Texture](ctx, assets, "ui/logo")
//
// From a config file:
//
//	assets, _ := respack.OpenConfig(ctx, "libraries.jsonc")
//
// # Loading
//
// Loads bring in a resource's dependencies first. An immediate load runs
// the import on the caller's goroutine; otherwise imports are queued and a
// single background worker drains the queue in FIFO order:
//
//	res, _ := assets.Load(ctx, "level/forest", false)
//	if res.DependencyFailures > 0 { ... }
//
// Importers decode the raw bytes of a resource and construct the in-memory
// object. They are registered per resource type:
//
//	imp := catalog.NewImporter(
//	    func(data []byte, flags string) (*image.RGBA, error) { ... },
//	    func(h *catalog.Handle, img *image.RGBA) (catalog.Resource, error) {
//	        return &Texture{Base: catalog.NewBase(h.Key()), Image: img}, nil
//	    },
//	)
//
// # Packing
//
// container.Packer writes containers and descriptors to any blob store;
// cmd/respack wraps it on the command line.
//
// # Block-compressed batches
//
// Descriptors may declare block-compressed batches, but reading them is not
// supported: loads of their resources fail with ErrUnsupported.
package respack
