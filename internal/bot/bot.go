package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/dialog"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/award"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/registration"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/users"
)

// sender is the part of *tgbotapi.BotAPI used to talk back to chats.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type accounts interface {
	GetByTelegramID(ctx context.Context, tgID int64) (*users.User, error)
	UpsertFromTelegram(ctx context.Context, tg users.Telegram) (*users.User, error)
}

type dialogs interface {
	Get(ctx context.Context, chatID int64) (*dialog.Item, error)
	Set(ctx context.Context, chatID int64, state dialog.State, payload dialog.Payload) error
	Reset(ctx context.Context, chatID int64) error
}

type ledger interface {
	Balance(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]disposals.Record, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type Deps struct {
	Users     accounts
	States    dialogs
	Ledger    ledger
	Pricing   *pricing.Table
	Calc      *award.Calculator
	Submitter registration.Submitter
	Location  *time.Location
}

type Bot struct {
	api *tgbotapi.BotAPI
	out sender
	log *slog.Logger

	users     accounts
	states    dialogs
	ledger    ledger
	pricing   *pricing.Table
	calc      *award.Calculator
	submitter registration.Submitter
	loc       *time.Location

	sessions *sessions
	wg       sync.WaitGroup
}

func New(api *tgbotapi.BotAPI, log *slog.Logger, d Deps) *Bot {
	b := newBot(api, log, d)
	b.api = api
	return b
}

func newBot(out sender, log *slog.Logger, d Deps) *Bot {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		out:       out,
		log:       log,
		users:     d.Users,
		states:    d.States,
		ledger:    d.Ledger,
		pricing:   d.Pricing,
		calc:      d.Calc,
		submitter: d.Submitter,
		loc:       loc,
		sessions:  newSessions(),
	}
}

// Run polls updates until ctx is done, one goroutine per update, and waits
// for in-flight handlers before returning.
func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()
	defer b.api.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panicked", "update_id", upd.UpdateID, "panic", r)
		}
	}()
	switch {
	case upd.Message != nil:
		b.onMessage(ctx, upd)
	case upd.CallbackQuery != nil:
		b.onCallback(ctx, upd)
	}
}

func (b *Bot) onMessage(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleStateMessage(ctx, msg)
}

func (b *Bot) onCallback(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery.Message == nil || upd.CallbackQuery.From == nil {
		return
	}
	b.handleCallback(ctx, upd.CallbackQuery)
}
