package cli

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/orchard/internal/docker"
)

// MockDocker is a mock implementation of Docker for testing.
type MockDocker struct {
	mock.Mock
}

var _ Docker = (*MockDocker)(nil)

func (m *MockDocker) Containers(ctx context.Context, all bool) ([]docker.Container, error) {
	args := m.Called(ctx, all)
	containers, _ := args.Get(0).([]docker.Container)
	return containers, args.Error(1)
}

func (m *MockDocker) CreateContainer(ctx context.Context, opts docker.CreateOptions) (*docker.Created, error) {
	args := m.Called(ctx, opts)
	created, _ := args.Get(0).(*docker.Created)
	return created, args.Error(1)
}

func (m *MockDocker) ReplaceContainer(ctx context.Context, id string, opts docker.CreateOptions) (*docker.Created, error) {
	args := m.Called(ctx, id, opts)
	created, _ := args.Get(0).(*docker.Created)
	return created, args.Error(1)
}

func (m *MockDocker) InspectContainer(ctx context.Context, id string) (*docker.ContainerInfo, error) {
	args := m.Called(ctx, id)
	info, _ := args.Get(0).(*docker.ContainerInfo)
	return info, args.Error(1)
}

func (m *MockDocker) InspectContainerRaw(ctx context.Context, id string) (map[string]any, error) {
	args := m.Called(ctx, id)
	info, _ := args.Get(0).(map[string]any)
	return info, args.Error(1)
}

func (m *MockDocker) InspectImage(ctx context.Context, name string) (map[string]any, error) {
	args := m.Called(ctx, name)
	info, _ := args.Get(0).(map[string]any)
	return info, args.Error(1)
}

func (m *MockDocker) Start(ctx context.Context, id string, binds []string) error {
	return m.Called(ctx, id, binds).Error(0)
}

func (m *MockDocker) Stop(ctx context.Context, id string, timeout int) error {
	return m.Called(ctx, id, timeout).Error(0)
}

func (m *MockDocker) Restart(ctx context.Context, id string, timeout int) error {
	return m.Called(ctx, id, timeout).Error(0)
}

func (m *MockDocker) Kill(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDocker) RemoveContainer(ctx context.Context, id string, volumes bool) error {
	return m.Called(ctx, id, volumes).Error(0)
}

func (m *MockDocker) Diff(ctx context.Context, id string) ([]docker.Change, error) {
	args := m.Called(ctx, id)
	changes, _ := args.Get(0).([]docker.Change)
	return changes, args.Error(1)
}

func (m *MockDocker) Top(ctx context.Context, id string) (*docker.Top, error) {
	args := m.Called(ctx, id)
	top, _ := args.Get(0).(*docker.Top)
	return top, args.Error(1)
}

func (m *MockDocker) Export(ctx context.Context, id string) (io.ReadCloser, error) {
	args := m.Called(ctx, id)
	body, _ := args.Get(0).(io.ReadCloser)
	return body, args.Error(1)
}

func (m *MockDocker) Copy(ctx context.Context, id, resource string) (io.ReadCloser, error) {
	args := m.Called(ctx, id, resource)
	body, _ := args.Get(0).(io.ReadCloser)
	return body, args.Error(1)
}

func (m *MockDocker) Version(ctx context.Context) (*docker.Version, error) {
	args := m.Called(ctx)
	version, _ := args.Get(0).(*docker.Version)
	return version, args.Error(1)
}

func (m *MockDocker) AttachChannels(ctx context.Context, id string, opts docker.AttachOptions) (*docker.Attachment, error) {
	args := m.Called(ctx, id, opts)
	att, _ := args.Get(0).(*docker.Attachment)
	return att, args.Error(1)
}

// scriptChannel replays queued messages and reads as ended once end is
// called.
type scriptChannel struct {
	messages chan []byte
	endOnce  sync.Once

	mu        sync.Mutex
	sent      []byte
	closeSent bool
}

func newScriptChannel(messages ...string) *scriptChannel {
	ch := &scriptChannel{messages: make(chan []byte, len(messages)+8)}
	for _, m := range messages {
		ch.messages <- []byte(m)
	}
	return ch
}

func (c *scriptChannel) end() {
	c.endOnce.Do(func() { close(c.messages) })
}

func (c *scriptChannel) Recv() ([]byte, error) {
	data, ok := <-c.messages
	if !ok {
		return nil, io.EOF
	}
	return data, nil
}

func (c *scriptChannel) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, p...)
	return nil
}

func (c *scriptChannel) SendClose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeSent = true
	return nil
}

func (c *scriptChannel) Sent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.sent)
}

func (c *scriptChannel) CloseSent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeSent
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of output
// pumps.
type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
