// channel реализует устойчивый дуплексный канал поверх WebSocket-подобного
// транспорта: подключение, отправку, диспетчеризацию входящих кадров и
// ограниченное переподключение с линейным backoff.
//
// Канал принадлежит ровно одному владельцу (одному диалогу) и не разделяется
// между компонентами. Переподключение инициируется только close-событием
// транспорта; ошибки транспорта лишь пробрасываются в onError.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/mentorhub-client/internal/models"
	"github.com/pribylovaa/mentorhub-client/internal/pkg/log"
)

var (
	// ErrNotOpen — попытка отправки при неоткрытом канале.
	// Не фатально: вызывающий логирует и продолжает.
	ErrNotOpen = errors.New("channel not open")

	// ErrChannelClosed — бюджет переподключений исчерпан либо канал
	// закрыт явно; терминальное состояние, новых попыток не будет.
	ErrChannelClosed = errors.New("channel closed")
)

// Conn — минимальный контракт установленного соединения.
type Conn interface {
	ReadJSON(ctx context.Context, v any) error
	WriteJSON(ctx context.Context, v any) error
	Close() error
}

// Transport устанавливает соединение с endpoint.
type Transport interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// EndpointFunc отдаёт адрес подключения. Вызывается на каждом (пере)подключении,
// чтобы канал аутентифицировался актуальным access-токеном.
type EndpointFunc func(ctx context.Context) (string, error)

// FrameFunc получает входящие кадры строго в порядке доставки транспортом.
type FrameFunc func(ctx context.Context, frame models.Frame)

// ErrorFunc получает ошибки транспорта и терминальный ErrChannelClosed.
type ErrorFunc func(ctx context.Context, err error)

// Config — бюджет переподключений.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Channel — один логический дуплексный канал.
type Channel struct {
	transport Transport
	endpoint  EndpointFunc
	cfg       Config

	onFrame FrameFunc
	onError ErrorFunc

	mu       sync.Mutex
	state    models.ConnState
	attempts int
	conn     Conn
	retry    *time.Timer
	closed   bool

	// baseCtx живёт от первого Connect до Disconnect; на нём работают
	// циклы чтения и отложенные переподключения.
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// New создаёт канал. Колбэки могут быть nil.
func New(transport Transport, endpoint EndpointFunc, cfg Config, onFrame FrameFunc, onError ErrorFunc) *Channel {
	if onFrame == nil {
		onFrame = func(context.Context, models.Frame) {}
	}
	if onError == nil {
		onError = func(context.Context, error) {}
	}

	return &Channel{
		transport: transport,
		endpoint:  endpoint,
		cfg:       cfg,
		onFrame:   onFrame,
		onError:   onError,
		state:     models.Connecting,
	}
}

// State возвращает текущее состояние соединения.
func (c *Channel) State() models.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect открывает соединение. При успехе счётчик попыток сбрасывается
// и запускается цикл чтения; при неудаче планируется переподключение.
func (c *Channel) Connect(ctx context.Context) error {
	const op = "channel.channel.Connect"

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrChannelClosed)
	}
	if c.baseCtx == nil {
		c.baseCtx, c.baseCancel = context.WithCancel(log.Into(context.Background(), log.From(ctx)))
	}
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Send отправляет кадр. Контракт требует открытого канала: отправка в любом
// другом состоянии — no-op с предупреждением в логе, не паника.
func (c *Channel) Send(ctx context.Context, frame models.Frame) error {
	const op = "channel.channel.Send"

	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != models.Open || conn == nil {
		log.From(ctx).Warn("channel_send_skipped",
			slog.String("op", op),
			slog.String("state", state.String()),
		)
		return fmt.Errorf("%s: %w", op, ErrNotOpen)
	}

	if err := conn.WriteJSON(ctx, frame); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Disconnect закрывает канал явно: гасит запланированное переподключение,
// останавливает цикл чтения и закрывает соединение. Идемпотентен.
// После явного Disconnect канал не переподключается никогда.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.state = models.Closed
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	cancel := c.baseCancel
	c.baseCancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// dial — одна попытка подключения (первичного или повторного).
func (c *Channel) dial(ctx context.Context) error {
	const op = "channel.channel.dial"

	lg := log.From(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrChannelClosed)
	}
	c.state = models.Connecting
	base := c.baseCtx
	c.mu.Unlock()

	endpoint, err := c.endpoint(ctx)
	if err != nil {
		lg.Warn("channel_endpoint_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		c.onError(ctx, err)
		c.scheduleReconnect(ctx)
		return fmt.Errorf("%s: %w", op, err)
	}

	conn, err := c.transport.Dial(ctx, endpoint)
	if err != nil {
		lg.Warn("channel_dial_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		c.onError(ctx, err)
		c.scheduleReconnect(ctx)
		return fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%s: %w", op, ErrChannelClosed)
	}
	c.conn = conn
	c.state = models.Open
	c.attempts = 0
	c.mu.Unlock()

	lg.Info("channel_open")

	// Цикл чтения живёт на baseCtx и переживает ctx вызова Connect.
	go c.readLoop(base, conn)

	return nil
}

// readLoop доставляет кадры в onFrame строго в порядке чтения из транспорта.
// Ошибка чтения трактуется как close-событие.
func (c *Channel) readLoop(ctx context.Context, conn Conn) {
	for {
		var frame models.Frame
		if err := conn.ReadJSON(ctx, &frame); err != nil {
			if ctx.Err() != nil {
				// Явный Disconnect.
				return
			}
			c.handleClose(ctx, err)
			return
		}
		c.onFrame(ctx, frame)
	}
}

// handleClose обрабатывает обрыв соединения.
func (c *Channel) handleClose(ctx context.Context, cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = models.Connecting
	c.mu.Unlock()

	log.From(ctx).Warn("channel_disconnected", slog.String("err", cause.Error()))

	c.scheduleReconnect(ctx)
}

// scheduleReconnect планирует следующую попытку либо, если бюджет исчерпан,
// переводит канал в терминальный Closed.
func (c *Channel) scheduleReconnect(ctx context.Context) {
	lg := log.From(ctx)

	c.mu.Lock()
	if c.closed || c.retry != nil {
		c.mu.Unlock()
		return
	}

	delay, ok := nextDelay(c.attempts, c.cfg.MaxAttempts, c.cfg.BaseDelay)
	if !ok {
		c.state = models.Closed
		c.closed = true
		c.mu.Unlock()

		lg.Error("channel_reconnect_exhausted",
			slog.Int("max_attempts", c.cfg.MaxAttempts),
		)
		c.onError(ctx, ErrChannelClosed)
		return
	}

	c.attempts++
	attempt := c.attempts
	c.state = models.Connecting
	base := c.baseCtx
	c.retry = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.retry = nil
		c.mu.Unlock()
		_ = c.dial(base)
	})
	c.mu.Unlock()

	lg.Info("channel_reconnect_scheduled",
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", c.cfg.MaxAttempts),
		slog.Duration("delay", delay),
	)
}
