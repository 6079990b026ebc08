package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/mentorhub-client/internal/models"
)

// fakeConn — управляемое из теста соединение: кадры и ошибки чтения
// подкладываются через каналы, записи копятся в срез.
type fakeConn struct {
	mu     sync.Mutex
	in     chan models.Frame
	errCh  chan error
	writes []models.Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:    make(chan models.Frame, 16),
		errCh: make(chan error, 1),
	}
}

func (c *fakeConn) ReadJSON(ctx context.Context, v any) error {
	select {
	case f := <-c.in:
		*(v.(*models.Frame)) = f
		return nil
	case err := <-c.errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) WriteJSON(_ context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, v.(models.Frame))
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) push(f models.Frame) { c.in <- f }
func (c *fakeConn) fail(err error)      { c.errCh <- err }

func (c *fakeConn) written() []models.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Frame, len(c.writes))
	copy(out, c.writes)
	return out
}

// fakeTransport считает попытки подключения; script решает судьбу
// каждой попытки по её порядковому номеру (nil — успех).
type fakeTransport struct {
	mu        sync.Mutex
	endpoints []string
	conns     []*fakeConn
	script    func(attempt int) error
}

func (ft *fakeTransport) Dial(_ context.Context, endpoint string) (Conn, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	n := len(ft.endpoints)
	ft.endpoints = append(ft.endpoints, endpoint)

	if ft.script != nil {
		if err := ft.script(n); err != nil {
			return nil, err
		}
	}

	conn := newFakeConn()
	ft.conns = append(ft.conns, conn)
	return conn, nil
}

func (ft *fakeTransport) dialCount() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.endpoints)
}

func (ft *fakeTransport) conn(i int) *fakeConn {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.conns[i]
}

// recorder собирает кадры и ошибки из колбэков канала.
type recorder struct {
	mu     sync.Mutex
	frames []models.Frame
	errs   []error
}

func (r *recorder) onFrame(_ context.Context, f models.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recorder) onError(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) closedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, err := range r.errs {
		if errors.Is(err, ErrChannelClosed) {
			n++
		}
	}
	return n
}

func staticEndpoint(u string) EndpointFunc {
	return func(context.Context) (string, error) { return u, nil }
}

func fastCfg() Config {
	return Config{MaxAttempts: 5, BaseDelay: time.Millisecond}
}

func TestConnect_DispatchesFramesInOrder(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	rec := &recorder{}
	c := New(ft, staticEndpoint("ws://x/ws/chat"), fastCfg(), rec.onFrame, rec.onError)
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))
	require.Equal(t, models.Open, c.State())

	conn := ft.conn(0)
	conn.push(models.Frame{Type: models.FrameMessage, Content: "первое"})
	conn.push(models.Frame{Type: models.FrameTyping})
	conn.push(models.Frame{Type: models.FrameMessage, Content: "второе"})

	require.Eventually(t, func() bool { return rec.frameCount() == 3 }, time.Second, time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, "первое", rec.frames[0].Content)
	require.Equal(t, models.FrameTyping, rec.frames[1].Type)
	require.Equal(t, "второе", rec.frames[2].Content)
}

func TestSend_WritesFrameWhenOpen(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	c := New(ft, staticEndpoint("ws://x"), fastCfg(), nil, nil)
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))

	frame := models.Frame{Type: models.FrameMessage, RecipientID: 7, Content: "привет"}
	require.NoError(t, c.Send(context.Background(), frame))

	writes := ft.conn(0).written()
	require.Len(t, writes, 1)
	require.Equal(t, frame, writes[0])
}

func TestSend_NotOpen_ReturnsErrNotOpen(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	c := New(ft, staticEndpoint("ws://x"), fastCfg(), nil, nil)

	err := c.Send(context.Background(), models.Frame{Type: models.FrameMessage, Content: "hi"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotOpen)
	require.Zero(t, ft.dialCount())
}

// Бюджет: первичная попытка + 5 переподключений, затем терминальный Closed
// с ровно одним ErrChannelClosed; новых попыток не планируется.
func TestReconnect_ExhaustsBudgetAndCloses(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		script: func(int) error { return errors.New("connection refused") },
	}
	rec := &recorder{}
	c := New(ft, staticEndpoint("ws://x"), fastCfg(), rec.onFrame, rec.onError)

	err := c.Connect(context.Background())
	require.Error(t, err)

	require.Eventually(t, func() bool { return rec.closedCount() == 1 }, 2*time.Second, time.Millisecond)
	require.Equal(t, models.Closed, c.State())
	require.Equal(t, 6, ft.dialCount())

	// Терминальное состояние: больше никто никуда не звонит.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 6, ft.dialCount())
	require.Equal(t, 1, rec.closedCount())
}

func TestReconnect_AfterReadFailure(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	rec := &recorder{}
	c := New(ft, staticEndpoint("ws://x"), fastCfg(), rec.onFrame, rec.onError)
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))

	ft.conn(0).fail(errors.New("unexpected EOF"))

	require.Eventually(t, func() bool {
		return ft.dialCount() == 2 && c.State() == models.Open
	}, 2*time.Second, time.Millisecond)

	// Счётчик попыток сброшен: следующий обрыв снова получает полный бюджет.
	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()
	require.Zero(t, attempts)

	// Канал жив: кадры нового соединения доставляются.
	ft.conn(1).push(models.Frame{Type: models.FrameMessage, Content: "после обрыва"})
	require.Eventually(t, func() bool { return rec.frameCount() == 1 }, time.Second, time.Millisecond)
}

// Адрес подключения перечитывается на каждой попытке: после ротации
// токена переподключение идёт уже с новым значением.
func TestReconnect_ReconsultsEndpoint(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	current := "ws://x/ws/chat?token=first"

	endpoint := func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		return current, nil
	}

	ft := &fakeTransport{}
	c := New(ft, endpoint, fastCfg(), nil, nil)
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))

	mu.Lock()
	current = "ws://x/ws/chat?token=second"
	mu.Unlock()

	ft.conn(0).fail(errors.New("unexpected EOF"))

	require.Eventually(t, func() bool { return ft.dialCount() == 2 }, 2*time.Second, time.Millisecond)

	ft.mu.Lock()
	defer ft.mu.Unlock()
	require.Equal(t, "ws://x/ws/chat?token=first", ft.endpoints[0])
	require.Equal(t, "ws://x/ws/chat?token=second", ft.endpoints[1])
}

func TestDisconnect_CancelsPendingRetry(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		script: func(int) error { return errors.New("connection refused") },
	}
	c := New(ft, staticEndpoint("ws://x"), Config{MaxAttempts: 5, BaseDelay: time.Hour}, nil, nil)

	require.Error(t, c.Connect(context.Background()))
	require.Equal(t, 1, ft.dialCount())

	c.Disconnect()
	require.Equal(t, models.Closed, c.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, ft.dialCount())
}

func TestDisconnect_Idempotent(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	c := New(ft, staticEndpoint("ws://x"), fastCfg(), nil, nil)

	require.NoError(t, c.Connect(context.Background()))

	c.Disconnect()
	c.Disconnect()
	require.Equal(t, models.Closed, c.State())
}

func TestConnect_AfterDisconnect_Fails(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	c := New(ft, staticEndpoint("ws://x"), fastCfg(), nil, nil)

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()

	err := c.Connect(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrChannelClosed)
}

func TestConnect_EndpointError_SchedulesReconnect(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	endpoint := func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return "", errors.New("no token")
		}
		return "ws://x", nil
	}

	ft := &fakeTransport{}
	rec := &recorder{}
	c := New(ft, endpoint, fastCfg(), rec.onFrame, rec.onError)
	defer c.Disconnect()

	require.Error(t, c.Connect(context.Background()))

	require.Eventually(t, func() bool { return c.State() == models.Open }, 2*time.Second, time.Millisecond)
	require.Equal(t, 1, ft.dialCount())
}
