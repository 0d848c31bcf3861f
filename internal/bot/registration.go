package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/award"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/registration"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/submission"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/infra/metrics"
)

const scanPrompt = "Envie o código do Ecoponto (o texto lido do QR code)."

// view renders the screen for the machine's current step.
func (b *Bot) view(snap registration.Snapshot) (string, tgbotapi.InlineKeyboardMarkup) {
	d := snap.Draft
	switch snap.State {
	case registration.StatePickCategory:
		return fmt.Sprintf("📍 Ecoponto: %s\nEscolha a categoria do material:", d.Site.SiteID),
			categoryKeyboard(b.pricing.Categories())

	case registration.StatePickMaterial:
		rules, err := b.pricing.Materials(d.Category)
		if err != nil {
			return "Categoria desconhecida. Volte e escolha outra.", navKeyboard(true, true)
		}
		return fmt.Sprintf("📍 Ecoponto: %s\nCategoria: %s\nEscolha o material:", d.Site.SiteID, d.Category),
			materialKeyboard(rules)

	case registration.StateEnterQuantity, registration.StateSubmitting:
		rule, err := b.pricing.Lookup(d.Material)
		if err != nil {
			return userMessage(err), navKeyboard(true, true)
		}
		if strings.TrimSpace(d.Quantity) != "" {
			if res, err := b.calc.Compute(d.Material, d.Quantity); err == nil {
				return fmt.Sprintf(
					"Confira o registro:\n📍 Ecoponto: %s\nCategoria: %s\nMaterial: %s\nQuantidade: %s\nPontos: %s",
					d.Site.SiteID, d.Category, d.Material, quantityLabel(res.Quantity),
					formatPoints(res.Points),
				), confirmKeyboard()
			}
		}
		unit := "quilos (kg)"
		if rule.Unit == pricing.UnitPerCount {
			unit = "unidades"
		}
		return fmt.Sprintf("Material: %s (%d pts/%s)\nInforme a quantidade em %s, por exemplo 2,5.",
			d.Material, rule.PointsPerUnit, rule.Unit.Label(), unit), navKeyboard(true, true)
	}
	return scanPrompt, navKeyboard(true, false)
}

// quantityLabel formats like stored records do: "2,5 kg", "3 un".
func quantityLabel(q award.Quantity) string {
	var rec disposals.Record
	if q.Unit == pricing.UnitPerCount {
		c := q.Count
		rec.Count = &c
	} else {
		m := q.Mass
		rec.Mass = &m
	}
	return rec.QuantityLabel()
}

// showStep sends the current step as a new message and strips the buttons of
// the previous one.
func (b *Bot) showStep(ctx context.Context, s *session, prefix string) {
	text, kb := b.view(s.m.Snapshot())
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	b.clearMarkup(s.chatID, s.lastMessage())
	if mid := b.sendText(s.chatID, text, kb); mid != 0 {
		s.setLastMID(mid)
	}
	b.persist(ctx, s)
}

// editStep redraws the current step in place of a callback's message.
func (b *Bot) editStep(ctx context.Context, s *session, messageID int, prefix string) {
	text, kb := b.view(s.m.Snapshot())
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	b.editTextWithKeyboard(s.chatID, messageID, text, kb)
	s.setLastMID(messageID)
	b.persist(ctx, s)
}

func (b *Bot) startRegistration(ctx context.Context, msg *tgbotapi.Message) {
	u, err := b.resolveUser(ctx, msg.From)
	if err != nil {
		b.sendText(msg.Chat.ID, "Erro: não foi possível carregar seu perfil.", nil)
		return
	}
	if s := b.session(ctx, msg.Chat.ID, u.ID); s != nil && s.m.State() == registration.StateSubmitting {
		b.sendText(msg.Chat.ID, userMessage(registration.ErrSubmissionInFlight), nil)
		return
	}
	s := b.startSession(ctx, msg.Chat.ID, u.ID)
	b.showStep(ctx, s, "")
}

func (b *Bot) onScanText(ctx context.Context, s *session, text string) {
	accepted, err := s.m.OnScan(text)
	switch {
	case err != nil:
		metrics.Scans.WithLabelValues(metrics.ScanRejected).Inc()
		b.log.Debug("scan rejected", "chat_id", s.chatID, "err", err)
		b.showStep(ctx, s, "⚠️ "+userMessage(err))
	case !accepted:
		metrics.Scans.WithLabelValues(metrics.ScanIgnored).Inc()
	default:
		metrics.Scans.WithLabelValues(metrics.ScanAccepted).Inc()
		b.showStep(ctx, s, "✅ Ecoponto identificado.")
	}
}

func (b *Bot) onQuantityText(ctx context.Context, s *session, text string) {
	if err := s.m.SetQuantity(text); err != nil {
		b.sendText(s.chatID, userMessage(err), nil)
		return
	}
	if _, err := s.m.Quote(); err != nil {
		b.showStep(ctx, s, "⚠️ "+userMessage(err))
		return
	}
	b.showStep(ctx, s, "")
}

func (b *Bot) onPickCategory(ctx context.Context, cb *tgbotapi.CallbackQuery, s *session) {
	i, ok := parseIndex(cb.Data, cbCategory)
	cats := b.pricing.Categories()
	if !ok || i >= len(cats) {
		b.answerCallback(cb, "Opção inválida", false)
		return
	}
	if err := s.m.SelectCategory(cats[i].Name); err != nil {
		b.answerCallback(cb, userMessage(err), false)
		return
	}
	b.editStep(ctx, s, cb.Message.MessageID, "")
	b.answerCallback(cb, cats[i].Name, false)
}

func (b *Bot) onPickMaterial(ctx context.Context, cb *tgbotapi.CallbackQuery, s *session) {
	i, ok := parseIndex(cb.Data, cbMaterial)
	rules, err := b.pricing.Materials(s.m.Snapshot().Draft.Category)
	if !ok || err != nil || i >= len(rules) {
		b.answerCallback(cb, "Opção inválida", false)
		return
	}
	if err := s.m.SelectMaterial(rules[i].MaterialID); err != nil {
		b.answerCallback(cb, userMessage(err), false)
		return
	}
	b.editStep(ctx, s, cb.Message.MessageID, "")
	b.answerCallback(cb, rules[i].MaterialID, false)
}

func (b *Bot) onSubmit(ctx context.Context, cb *tgbotapi.CallbackQuery, s *session) {
	chatID, mid := s.chatID, cb.Message.MessageID
	if s.m.State() == registration.StateSubmitting {
		b.answerCallback(cb, userMessage(registration.ErrSubmissionInFlight), false)
		return
	}
	b.answerCallback(cb, "Enviando…", false)
	b.editTextAndClear(chatID, mid, "⏳ Registrando descarte…")

	rec, err := s.m.Submit(ctx)
	if err != nil {
		if errors.Is(err, registration.ErrSubmissionInFlight) {
			return
		}
		b.log.Info("submit not completed", "chat_id", chatID, "retryable", submission.IsRetryable(err), "err", err)
		b.editStep(ctx, s, mid, "⚠️ "+userMessage(err))
		return
	}
	b.persist(ctx, s)

	text := fmt.Sprintf("✅ Descarte registrado!\n%s de %s no Ecoponto %s\n+%s pontos (aguardando validação)",
		rec.QuantityLabel(), rec.MaterialID, rec.SiteID, formatPoints(rec.PointsAwarded))
	if bal, err := b.ledger.Balance(ctx, rec.UserID); err == nil {
		text += fmt.Sprintf("\nSaldo: %s pontos", formatPoints(bal))
	} else {
		b.log.Warn("balance after submit", "user_id", rec.UserID, "err", err)
	}
	b.editTextWithKeyboard(chatID, mid, text, doneKeyboard())
}

// goBack serves both the inline back button and /voltar.
func (b *Bot) goBack(ctx context.Context, s *session, messageID int) {
	st, err := s.m.Back()
	if err != nil {
		b.sendText(s.chatID, userMessage(err), nil)
		return
	}
	if st == registration.StateExited {
		b.persist(ctx, s)
		text := "Registro encerrado. Use /registrar quando quiser começar de novo."
		if messageID != 0 {
			b.editTextAndClear(s.chatID, messageID, text)
		} else {
			b.clearMarkup(s.chatID, s.lastMessage())
			b.sendText(s.chatID, text, nil)
		}
		return
	}
	if messageID != 0 {
		b.editStep(ctx, s, messageID, "")
		return
	}
	b.showStep(ctx, s, "")
}

// cancelFlow is "cancel and rescan" inside the form; while scanning it
// leaves the flow.
func (b *Bot) cancelFlow(ctx context.Context, s *session, messageID int) {
	if s.m.State() == registration.StateScanning {
		b.goBack(ctx, s, messageID)
		return
	}
	if err := s.m.Cancel(); err != nil {
		b.sendText(s.chatID, userMessage(err), nil)
		return
	}
	if messageID != 0 {
		b.editStep(ctx, s, messageID, "Registro cancelado.")
		return
	}
	b.showStep(ctx, s, "Registro cancelado.")
}
