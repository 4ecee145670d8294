// Package app wires the calheat HTTP server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, YAML file, environment)
//	2. Initialize logging and OpenTelemetry
//	3. Create the file manager, renderer and pipeline
//	4. Start the diagnostics hub and attach it as a pipeline reporter
//	5. Create the services, handlers and router
//	6. Configure the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication(configPath)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns after SIGINT, SIGTERM or cancellation of its context. In-flight
// requests are given Server.ShutdownTimeout to finish, diagnostics clients
// are disconnected and telemetry is flushed.
//
// The package never calls os.Exit; errors are returned to main.
package app
