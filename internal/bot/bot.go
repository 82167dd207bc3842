// Package bot connects chat platforms to the command router.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/susu3304/finbot/internal/commands"
	"github.com/susu3304/finbot/internal/config"
)

// Dispatcher is implemented by commands.Router.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev commands.Event) []commands.Reply
}

// Transport delivers chat events until ctx is cancelled.
type Transport interface {
	Run(ctx context.Context) error
}

// New creates the transport selected by cfg.Transport.
func New(cfg *config.Config, router Dispatcher, logger *slog.Logger) (Transport, error) {
	switch cfg.Transport {
	case config.TransportTelegram, "":
		return NewTelegram(cfg.TelegramToken, router, logger)
	case config.TransportDiscord:
		return NewDiscord(cfg.DiscordToken, router, logger)
	}
	return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
}
