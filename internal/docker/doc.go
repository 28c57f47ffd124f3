// Package docker is the subset of the Docker remote API that Orchard hosts
// expose: container lifecycle, inspection, filesystem export and the
// websocket attach endpoint.
package docker
