// Package bootstrap wires configuration, logging and component lifecycle
// into a runnable service.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(gcdDirectory)
//	app.RegisterComponent(dir)
//	app.RegisterComponent(srv)
//	err = app.Run(ctx)
package bootstrap
