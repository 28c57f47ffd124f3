// Package main is the entry point for the orchard command-line client.
//
// orchard manages Orchard apps and runs Docker containers on the host
// provisioned for each app. Attaching to a container connects the local
// terminal to the container's stdin, stdout and stderr over websockets.
//
// Usage:
//
//	orchard apps                       # list apps
//	orchard apps create NAME           # add an app
//	orchard docker ps                  # containers of the default app
//	orchard -a web docker run -i -t ubuntu bash
//	orchard docker logs CONTAINER
//
// Configuration:
//   - Environment variables (ORCHARD_HOME, ORCHARD_API_URL, ...)
//   - Optional config.toml in the orchard home
//   - Defaults for the public Orchard cloud
//
// Files:
//   - ~/.orchard/api_tokens: one API token per API URL
//   - ~/.orchard/log: a debug log per command run
//
// Signals:
//   - SIGINT, SIGTERM: abort the running command; a second interrupt
//     exits immediately
package main
