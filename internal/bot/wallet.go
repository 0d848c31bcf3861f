package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/users"
)

const walletRecent = 3

// historyLimit caps the xlsx export to the newest rows.
var historyLimit = 1000

// resolveUser maps the Telegram sender to an account, creating it on first
// contact.
func (b *Bot) resolveUser(ctx context.Context, from *tgbotapi.User) (*users.User, error) {
	u, err := b.users.GetByTelegramID(ctx, from.ID)
	if err != nil {
		b.log.Error("get user failed", "tg_id", from.ID, "err", err)
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	u, err = b.users.UpsertFromTelegram(ctx, users.Telegram{
		ID:        from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		b.log.Error("upsert user failed", "tg_id", from.ID, "err", err)
		return nil, err
	}
	b.log.Info("user registered", "tg_id", from.ID, "user_id", u.ID)
	return u, nil
}

func (b *Bot) showWallet(ctx context.Context, chatID int64, from *tgbotapi.User) {
	u, err := b.resolveUser(ctx, from)
	if err != nil {
		b.sendText(chatID, "Erro: não foi possível carregar seu perfil.", nil)
		return
	}
	balance, err := b.ledger.Balance(ctx, u.ID)
	if err != nil {
		b.log.Error("wallet balance failed", "user_id", u.ID, "err", err)
		b.sendText(chatID, "Erro ao carregar o saldo. Tente novamente.", nil)
		return
	}
	count, err := b.ledger.CountByUser(ctx, u.ID)
	if err != nil {
		b.log.Error("wallet count failed", "user_id", u.ID, "err", err)
		b.sendText(chatID, "Erro ao carregar o saldo. Tente novamente.", nil)
		return
	}
	recent, err := b.ledger.ListByUser(ctx, u.ID, walletRecent)
	if err != nil {
		b.log.Error("wallet history failed", "user_id", u.ID, "err", err)
	}
	b.sendText(chatID, walletText(balance, count, recent, b.loc), nil)
}

func walletText(balance, count int64, recent []disposals.Record, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("💰 Carteira\n")
	sb.WriteString(fmt.Sprintf("Saldo: %s pontos\n", formatPoints(balance)))
	sb.WriteString(fmt.Sprintf("Descartes registrados: %d\n", count))
	if len(recent) == 0 {
		sb.WriteString("\nVocê ainda não registrou descartes.")
		return sb.String()
	}
	sb.WriteString("\nÚltimos descartes:\n")
	for _, r := range recent {
		sb.WriteString(fmt.Sprintf("• %s %s, %s: +%s (%s)\n",
			r.CreatedAt.In(loc).Format("02/01 15:04"),
			r.MaterialID,
			r.QuantityLabel(),
			formatPoints(r.PointsAwarded),
			statusLabel(r.Status),
		))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func statusLabel(s disposals.Status) string {
	if s == disposals.StatusPendingValidation {
		return "pendente"
	}
	return string(s)
}

// sendHistory exports the user's newest historyLimit disposals as an xlsx
// document; the caption says when older ones were left out.
func (b *Bot) sendHistory(ctx context.Context, chatID int64, from *tgbotapi.User) {
	u, err := b.resolveUser(ctx, from)
	if err != nil {
		b.sendText(chatID, "Erro: não foi possível carregar seu perfil.", nil)
		return
	}
	records, err := b.ledger.ListByUser(ctx, u.ID, historyLimit+1)
	if err != nil {
		b.log.Error("history failed", "user_id", u.ID, "err", err)
		b.sendText(chatID, "Erro ao carregar o histórico.", nil)
		return
	}
	if len(records) == 0 {
		b.sendText(chatID, "Você ainda não registrou descartes.", nil)
		return
	}

	truncated := len(records) > historyLimit
	if truncated {
		records = records[:historyLimit]
	}

	data, err := disposals.HistoryWorkbook(records, b.loc)
	if err != nil {
		b.log.Error("history workbook failed", "user_id", u.ID, "err", err)
		b.sendText(chatID, "Erro ao gerar a planilha.", nil)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("historico_ecoponto_%s.xlsx", time.Now().In(b.loc).Format("20060102_150405")),
		Bytes: data,
	})
	doc.Caption = historyCaption(len(records), truncated)
	b.send(doc)
}

func historyCaption(n int, truncated bool) string {
	if truncated {
		return fmt.Sprintf("Histórico de descartes: os %d registros mais recentes. Registros mais antigos não foram incluídos.", n)
	}
	return fmt.Sprintf("Histórico de descartes (%d registros).", n)
}
