package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/registration"
)

const helpText = `Como funciona:
1. Toque em «Registrar descarte» ou envie /registrar.
2. Envie o código do QR do Ecoponto.
3. Escolha a categoria e o material.
4. Informe a quantidade e confirme.

Comandos:
/registrar - novo registro de descarte
/voltar - volta uma etapa
/cancelar - cancela e pede um novo código
/carteira - saldo e últimos descartes
/historico - planilha com todos os descartes
/help - esta ajuda`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		u, err := b.resolveUser(ctx, msg.From)
		if err != nil {
			b.sendText(chatID, "Erro: não foi possível salvar seu perfil.", nil)
			return
		}
		b.sendText(chatID,
			"Olá, "+u.DisplayName()+"! Aqui você registra seus descartes nos Ecopontos e acumula pontos.\n"+
				"Toque em «Registrar descarte» para começar.",
			mainReplyKeyboard())

	case "help":
		b.sendText(chatID, helpText, mainReplyKeyboard())

	case "registrar":
		b.startRegistration(ctx, msg)

	case "voltar":
		if s := b.currentSession(ctx, msg); s != nil {
			b.goBack(ctx, s, 0)
		}

	case "cancelar":
		if s := b.currentSession(ctx, msg); s != nil {
			b.cancelFlow(ctx, s, 0)
		}

	case "carteira":
		b.showWallet(ctx, msg.Chat.ID, msg.From)

	case "historico":
		b.sendHistory(ctx, msg.Chat.ID, msg.From)

	default:
		b.sendText(chatID, "Não conheço esse comando. Envie /help", nil)
	}
}

func (b *Bot) handleStateMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch text {
	case btnRegister:
		b.startRegistration(ctx, msg)
		return
	case btnWallet:
		b.showWallet(ctx, chatID, msg.From)
		return
	case btnHistory:
		b.sendHistory(ctx, chatID, msg.From)
		return
	case btnHelp:
		b.sendText(chatID, helpText, mainReplyKeyboard())
		return
	}

	s := b.currentSession(ctx, msg)
	if s == nil {
		return
	}
	switch s.m.State() {
	case registration.StateScanning:
		b.onScanText(ctx, s, text)
	case registration.StateEnterQuantity:
		b.onQuantityText(ctx, s, text)
	case registration.StatePickCategory, registration.StatePickMaterial:
		b.sendText(chatID, "Escolha uma opção nos botões acima, ou /voltar.", nil)
	case registration.StateSubmitting:
		b.sendText(chatID, userMessage(registration.ErrSubmissionInFlight), nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	switch data {
	case cbRestartFlow:
		b.answerCallback(cb, "", false)
		b.startRegistration(ctx, &tgbotapi.Message{Chat: cb.Message.Chat, From: cb.From})
		return
	case cbHistoryExcel:
		b.answerCallback(cb, "", false)
		b.sendHistory(ctx, chatID, cb.From)
		return
	}

	u, err := b.resolveUser(ctx, cb.From)
	if err != nil {
		b.answerCallback(cb, "Erro ao carregar perfil", true)
		return
	}
	s := b.session(ctx, chatID, u.ID)
	if s == nil {
		b.editTextAndClear(chatID, cb.Message.MessageID, "Este registro expirou. Use /registrar para começar outro.")
		b.answerCallback(cb, "", false)
		return
	}

	switch {
	case data == cbBack:
		b.answerCallback(cb, "", false)
		b.goBack(ctx, s, cb.Message.MessageID)
	case data == cbCancel:
		b.answerCallback(cb, "Cancelado", false)
		b.cancelFlow(ctx, s, cb.Message.MessageID)
	case data == cbSubmit:
		b.onSubmit(ctx, cb, s)
	case strings.HasPrefix(data, cbCategory):
		b.onPickCategory(ctx, cb, s)
	case strings.HasPrefix(data, cbMaterial):
		b.onPickMaterial(ctx, cb, s)
	default:
		b.answerCallback(cb, "Opção desconhecida", false)
	}
}

// currentSession resolves the sender and returns the chat's flow, telling the
// user how to start one when there is none.
func (b *Bot) currentSession(ctx context.Context, msg *tgbotapi.Message) *session {
	u, err := b.resolveUser(ctx, msg.From)
	if err != nil {
		b.sendText(msg.Chat.ID, "Erro: não foi possível carregar seu perfil.", nil)
		return nil
	}
	s := b.session(ctx, msg.Chat.ID, u.ID)
	if s == nil {
		b.sendText(msg.Chat.ID, "Nenhum registro em andamento. Use /registrar para começar.", mainReplyKeyboard())
	}
	return s
}
