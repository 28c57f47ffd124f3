// Package transport carries attach channels over websockets.
//
// A Channel wraps one gorilla/websocket connection and satisfies
// attach.Channel: every message is one chunk, a normal close from the peer
// reads as io.EOF and a reset peer makes Send fail with
// attach.ErrBrokenChannel. An Opener turns a container ID and an
// attach.Selector into a connection to the Docker attach endpoint.
package transport
