// Package cli implements the orchard command tree on cobra.
//
// Commands share an App: the loaded configuration, the logger that also
// writes the per-command debug log, and the signed-in Orchard client.
// Docker commands reach the Docker host of the app selected with -a, or
// of the customer's default app. attach, logs and non-detached run hand
// the terminal to an attach session.
package cli
