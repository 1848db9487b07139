// Package loader mounts HTTP features on the Fiber app.
//
// A feature reports its name, whether it is enabled, and registers its routes in
// Load. The Manager keeps features in registration order and skips disabled ones:
//
//	mgr := loader.NewManager(logger)
//	mgr.Register(syncapi.NewFeature(service, cfg.Server.Enabled))
//	if err := mgr.LoadAll(app); err != nil {
//	    return err
//	}
//
// LoadAll stops at the first feature that fails to load.
package loader
