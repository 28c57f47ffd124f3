package attach

import (
	"bytes"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeChannel is an in-memory Channel. Chunks pushed with emit are handed
// out by Recv; closing the feed makes Recv return io.EOF.
type fakeChannel struct {
	feed chan []byte

	mu       sync.Mutex
	sent     bytes.Buffer
	closes   int
	sendErr  error
	onClose  func()
	closed   chan struct{}
	feedOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		feed:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeChannel) Recv() ([]byte, error) {
	chunk, ok := <-c.feed
	if !ok {
		return nil, io.EOF
	}
	return chunk, nil
}

func (c *fakeChannel) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent.Write(p)
	return nil
}

func (c *fakeChannel) SendClose() error {
	c.mu.Lock()
	c.closes++
	first := c.closes == 1
	onClose := c.onClose
	c.mu.Unlock()

	if first {
		close(c.closed)
		if onClose != nil {
			onClose()
		}
	}
	return nil
}

func (c *fakeChannel) emit(chunks ...string) {
	for _, chunk := range chunks {
		c.feed <- []byte(chunk)
	}
}

func (c *fakeChannel) finish() {
	c.feedOnce.Do(func() { close(c.feed) })
}

func (c *fakeChannel) Sent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent.String()
}

func (c *fakeChannel) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// syncBuffer is a bytes.Buffer safe to read while a pump writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type panicWriter struct{}

func (panicWriter) Write([]byte) (int, error) {
	panic("writer exploded")
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	pumps    map[string]PumpState
	bytes    map[Stream]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		pumps: make(map[string]PumpState),
		bytes: make(map[Stream]int),
	}
}

func (o *recordingObserver) SessionFinished(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) BytesTransferred(stream Stream, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bytes[stream] += n
}

func (o *recordingObserver) PumpExited(pump string, state PumpState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pumps[pump] = state
}

func (o *recordingObserver) Outcomes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.outcomes...)
}

func (o *recordingObserver) Pump(name string) (PumpState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.pumps[name]
	return state, ok
}

func (o *recordingObserver) Bytes(stream Stream) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bytes[stream]
}

// newInputPipe returns the read end of a pipe to stand in for local input
// and the write end to type into it. Both are closed on cleanup.
func newInputPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

// nonblocking reports the O_NONBLOCK flag of f without going through
// (*os.File).Fd, which would clear it.
func nonblocking(t *testing.T, f *os.File) bool {
	t.Helper()
	fd, err := descriptor(f)
	require.NoError(t, err)
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	require.NoError(t, err)
	return flags&unix.O_NONBLOCK != 0
}

func setNonblocking(t *testing.T, f *os.File, enabled bool) {
	t.Helper()
	fd, err := descriptor(f)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fd, enabled))
}
