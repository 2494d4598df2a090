// Package bootstrap orchestrates service lifecycle: typed configuration,
// component registration, startup/shutdown hooks, and graceful shutdown
// on OS signals.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.RegisterComponent(serverComponent)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap
