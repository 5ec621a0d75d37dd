// Package app wires the delivery dashboard together: configuration,
// logging, OpenTelemetry, the dataset fetcher, the dashboard and health
// services, and the chi router serving the page and the JSON API.
//
// # Lifecycle
//
//	app, err := app.NewApplication(ctx, cfg, nil)
//	if err != nil {
//	    return err
//	}
//	return app.Run()
//
// Start serves HTTP and loads the fact table in the background so the
// first request normally finds it in memory. Stop shuts the server down
// within Server.ShutdownTimeout and flushes the telemetry providers.
package app
