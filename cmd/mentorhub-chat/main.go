// mentorhub-chat — консольный клиент диалога: поднимает сессию,
// держит её свежей в фоне и обменивается сообщениями с собеседником
// через устойчивый realtime-канал.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pribylovaa/mentorhub-client/internal/authapi"
	"github.com/pribylovaa/mentorhub-client/internal/channel"
	"github.com/pribylovaa/mentorhub-client/internal/chat"
	"github.com/pribylovaa/mentorhub-client/internal/config"
	"github.com/pribylovaa/mentorhub-client/internal/pkg/log"
	"github.com/pribylovaa/mentorhub-client/internal/session"
	"github.com/pribylovaa/mentorhub-client/internal/storage/sqlite"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var (
		configPath  string
		recipientID int64
	)
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Int64Var(&recipientID, "recipient", 0, "peer user id")
	flag.Parse()

	// .env — опционален, боевое окружение задаёт переменные напрямую.
	_ = godotenv.Load()

	cfg := config.MustLoad(configPath)

	lg := setupLogger(cfg.Env)
	slog.SetDefault(lg)
	lg.Info("starting application", "env", cfg.Env)

	if recipientID == 0 {
		lg.Error("recipient_required")
		os.Exit(1)
	}

	// Корневой контекст по сигналам; логгер едет в контексте.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()
	rootCtx = log.Into(rootCtx, lg)

	// Локальное хранилище сессии.
	storeCtx, storeCancel := context.WithTimeout(rootCtx, 10*time.Second)
	store, err := sqlite.New(storeCtx, cfg.Store.Path)
	storeCancel()
	if err != nil {
		lg.Error("storage_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer store.Close()
	lg.Info("storage_opened", slog.String("path", cfg.Store.Path))

	api := authapi.New(cfg.AuthAPI.BaseURL, cfg.AuthAPI.Timeout)

	manager := session.New(store, api, cfg.Session)
	manager.SetNavigate(func(path string) {
		lg.Info("navigate", slog.String("path", path))
	})

	// Вход, если сохранённой валидной сессии нет.
	if !manager.IsAuthenticated(rootCtx) {
		email := os.Getenv("MENTORHUB_EMAIL")
		password := os.Getenv("MENTORHUB_PASSWORD")
		if email == "" || password == "" {
			lg.Error("credentials_required",
				slog.String("hint", "set MENTORHUB_EMAIL and MENTORHUB_PASSWORD"),
			)
			os.Exit(1)
		}

		if err := manager.LoginWithPassword(rootCtx, email, password); err != nil {
			lg.Error("login_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}
	lg.Info("session_ready", slog.String("state", manager.State(rootCtx).String()))

	manager.StartAutoRefresh(rootCtx)
	defer manager.Stop()

	dialog := chat.New(recipientID, manager, channel.WebsocketTransport{},
		channel.Config{
			MaxAttempts: cfg.Channel.MaxAttempts,
			BaseDelay:   cfg.Channel.BaseDelay,
		},
		chat.Config{
			WSURL:          cfg.WS.URL,
			TypingWindow:   cfg.Chat.TypingWindow,
			TypingThrottle: cfg.Chat.TypingThrottle,
		},
	)

	if err := dialog.Open(rootCtx); err != nil {
		lg.Error("chat_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer dialog.Close()

	go printEvents(rootCtx, dialog)

	// Ввод пользователя: каждая строка уходит сообщением собеседнику.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			dialog.SendTyping(rootCtx)
			if err := dialog.SendMessage(rootCtx, scanner.Text()); err != nil {
				lg.Warn("send_failed", slog.String("err", err.Error()))
			}
		}
		rootCancel()
	}()

	<-rootCtx.Done()
	lg.Info("shutdown_requested")

	dialog.Close()
	manager.Stop()
	store.Close()

	lg.Info("client_stopped")
}

// printEvents выводит события диалога в консоль.
func printEvents(ctx context.Context, dialog *chat.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-dialog.Events():
			switch ev.Kind {
			case chat.EventMessage:
				fmt.Printf("[%d] %s\n", ev.Message.SenderID, ev.Message.Content)
			case chat.EventTyping:
				if dialog.PeerTyping() {
					fmt.Println("... собеседник печатает")
				}
			case chat.EventRead:
				fmt.Println("... сообщение прочитано")
			case chat.EventStatus:
				if ev.Err != nil {
					fmt.Printf("!!! канал закрыт: %v\n", ev.Err)
				}
			}
		}
	}
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var lg *slog.Logger

	switch env {
	case envLocal:
		lg = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		lg = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		lg = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		lg = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return lg
}
