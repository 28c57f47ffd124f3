// Package attach bridges the local terminal with the remote streams of a
// running container.
//
// A Session owns one attach invocation. It takes the local terminal,
// starts one pump per stream and keeps running until the remote stdout
// closes, the caller decides to stop, or the user interrupts a
// non-interactive raw session with Ctrl-C. The terminal is always handed
// back in the state it was found, whichever way the session ends.
//
// Components:
//   - Channel: remote byte stream for one I/O role (implemented by transport)
//   - Terminal: snapshot, raw mode and blocking-mode control of local streams
//   - input pump: local input to the stdin channel, one byte at a time
//   - output pump: stdout/stderr channel to the matching local stream
//   - Session: lifecycle CREATED -> RUNNING -> DRAINING -> TERMINATED
//
// Example Usage:
//
//	session := attach.NewSession(attach.Options{
//		Stdin:       stdio,
//		Stdout:      stdio,
//		Stderr:      stderr,
//		Interactive: true,
//		Raw:         true,
//		Logger:      logger,
//	})
//	err := session.Run(ctx)
package attach
