// chat реализует протокол одного диалога поверх устойчивого канала:
// упорядоченный приём сообщений, индикатор набора с автосбросом и
// распространение отметок о прочтении.
//
// Session владеет своим каналом эксклюзивно и аутентифицирует его
// access-токеном, полученным у session.Manager на момент подключения
// (просроченный токен обновляется до открытия канала — это делает Token).
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pribylovaa/mentorhub-client/internal/channel"
	"github.com/pribylovaa/mentorhub-client/internal/models"
	"github.com/pribylovaa/mentorhub-client/internal/pkg/log"
)

var (
	// ErrEmptyMessage — пустое или пробельное содержимое; кадр не отправляется.
	ErrEmptyMessage = errors.New("empty message")
)

// TokenSource отдаёт действующий access-токен (реализуется session.Manager).
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config — параметры поведения диалога.
type Config struct {
	// WSURL — базовый адрес realtime-эндпоинта (ws://host:port).
	WSURL string
	// TypingWindow — окно автосброса индикатора «собеседник печатает».
	TypingWindow time.Duration
	// TypingThrottle — минимальный интервал между исходящими typing-кадрами.
	TypingThrottle time.Duration
}

// EventKind — вид уведомления для UI.
type EventKind int

const (
	EventMessage EventKind = iota + 1
	EventTyping
	EventRead
	EventStatus
)

// Event — уведомление диалога. UI подписывается через Events либо опрашивает
// Messages/PeerTyping/Status.
type Event struct {
	Kind    EventKind
	Message models.Message
	Err     error
}

// Session — один диалог (self, recipient).
type Session struct {
	recipientID int64
	cfg         Config
	ch          *channel.Channel

	mu          sync.Mutex
	messages    []models.Message
	peerTyping  bool
	typingTimer *time.Timer
	lastTyping  time.Time

	events chan Event
}

// New создаёт диалог с recipientID поверх собственного канала.
func New(recipientID int64, tokens TokenSource, transport channel.Transport, chCfg channel.Config, cfg Config) *Session {
	s := &Session{
		recipientID: recipientID,
		cfg:         cfg,
		events:      make(chan Event, 64),
	}

	endpoint := func(ctx context.Context) (string, error) {
		token, err := tokens.Token(ctx)
		if err != nil {
			return "", err
		}
		return cfg.WSURL + "/ws/chat?token=" + url.QueryEscape(token), nil
	}

	s.ch = channel.New(transport, endpoint, chCfg, s.handleFrame, s.handleError)

	return s
}

// Open подключает канал диалога.
func (s *Session) Open(ctx context.Context) error {
	const op = "chat.chat.Open"

	if err := s.ch.Connect(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close завершает диалог: гасит таймер набора и закрывает канал.
// Уже полученные сообщения сохраняются. Идемпотентен.
func (s *Session) Close() {
	s.mu.Lock()
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.mu.Unlock()

	s.ch.Disconnect()
}

// SendMessage отправляет текст собеседнику. Пустое/пробельное содержимое
// отклоняется без исходящего кадра. Локального оптимистичного добавления
// нет: сообщение попадает в последовательность только с серверным эхом.
func (s *Session) SendMessage(ctx context.Context, content string) error {
	const op = "chat.chat.SendMessage"

	content = strings.TrimSpace(content)
	if content == "" {
		log.From(ctx).Warn("chat_empty_message_skipped", slog.String("op", op))
		return fmt.Errorf("%s: %w", op, ErrEmptyMessage)
	}

	frame := models.Frame{
		Type:        models.FrameMessage,
		RecipientID: s.recipientID,
		Content:     content,
	}

	if err := s.ch.Send(ctx, frame); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SendTyping сигналит собеседнику о наборе. На серию вызовов уходит не
// больше одного кадра за TypingThrottle.
func (s *Session) SendTyping(ctx context.Context) {
	s.mu.Lock()
	if s.cfg.TypingThrottle > 0 && time.Since(s.lastTyping) < s.cfg.TypingThrottle {
		s.mu.Unlock()
		return
	}
	s.lastTyping = time.Now()
	s.mu.Unlock()

	// Отправка в неоткрытый канал — допустимый no-op (уже залогирован).
	_ = s.ch.Send(ctx, models.Frame{
		Type:        models.FrameTyping,
		RecipientID: s.recipientID,
	})
}

// Messages возвращает копию последовательности сообщений.
// Порядок — строго порядок прихода кадров, поле Timestamp на него не влияет.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// PeerTyping: собеседник печатает (в пределах окна автосброса).
func (s *Session) PeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

// Status возвращает состояние канала диалога.
func (s *Session) Status() models.ConnState {
	return s.ch.State()
}

// Events — поток уведомлений для UI. При переполнении буфера уведомление
// отбрасывается: состояние всегда доступно через Messages/PeerTyping/Status.
func (s *Session) Events() <-chan Event {
	return s.events
}

// handleFrame — диспетчеризация входящего кадра по type.
func (s *Session) handleFrame(ctx context.Context, f models.Frame) {
	lg := log.From(ctx)

	switch f.Type {
	case models.FrameMessage:
		msg := models.Message{
			ID:          f.ID,
			SenderID:    f.SenderID,
			RecipientID: f.RecipientID,
			Content:     f.Content,
			Timestamp:   parseTimestamp(f.Timestamp),
			Read:        f.Read,
		}

		s.mu.Lock()
		// Строго в порядке доставки; без переупорядочивания и дедупликации.
		s.messages = append(s.messages, msg)
		s.mu.Unlock()

		s.notify(Event{Kind: EventMessage, Message: msg})

	case models.FrameTyping:
		s.mu.Lock()
		s.peerTyping = true
		if s.typingTimer == nil {
			s.typingTimer = time.AfterFunc(s.cfg.TypingWindow, s.clearTyping)
		} else {
			// Живой таймер всегда один: каждое typing-событие перезапускает его.
			s.typingTimer.Stop()
			s.typingTimer.Reset(s.cfg.TypingWindow)
		}
		s.mu.Unlock()

		s.notify(Event{Kind: EventTyping})

	case models.FrameRead:
		s.mu.Lock()
		for i := range s.messages {
			if s.messages[i].ID == f.MessageID {
				s.messages[i].Read = true
				break
			}
		}
		s.mu.Unlock()

		s.notify(Event{Kind: EventRead})

	case models.FrameConnected:
		// Информационный кадр, состояние не меняет.
		lg.Debug("chat_connected", slog.String("username", f.Username))

	default:
		lg.Warn("chat_unknown_frame", slog.String("type", f.Type))
	}
}

// handleError получает ошибки канала; терминальный ErrChannelClosed
// доводится до UI как статусное событие.
func (s *Session) handleError(ctx context.Context, err error) {
	if errors.Is(err, channel.ErrChannelClosed) {
		log.From(ctx).Warn("chat_channel_closed")
		s.notify(Event{Kind: EventStatus, Err: err})
		return
	}

	log.From(ctx).Warn("chat_channel_error", slog.String("err", err.Error()))
}

// clearTyping сбрасывает индикатор по истечении окна.
func (s *Session) clearTyping() {
	s.mu.Lock()
	s.peerTyping = false
	s.mu.Unlock()

	s.notify(Event{Kind: EventTyping})
}

// notify — неблокирующая доставка события.
func (s *Session) notify(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// parseTimestamp разбирает серверную метку времени; битая метка не мешает
// приёму — порядок определяется доставкой, а не Timestamp.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return ts
}
