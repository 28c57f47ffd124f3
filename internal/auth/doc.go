// Package auth signs the orchard CLI in to the Orchard API and keeps the
// resulting token under the orchard home, one file per API base URL.
package auth
