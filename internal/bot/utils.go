package bot

import (
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/award"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/registration"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/scancode"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/submission"
)

/*** HELPERS ***/

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.out.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

// sendText sends a message and returns its id, 0 on failure.
func (b *Bot) sendText(chatID int64, text string, markup any) int {
	m := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		m.ReplyMarkup = markup
	}
	sent, err := b.out.Send(m)
	if err != nil {
		b.log.Error("send failed", "chat_id", chatID, "err", err)
		return 0
	}
	return sent.MessageID
}

func (b *Bot) answerCallback(cb *tgbotapi.CallbackQuery, text string, alert bool) {
	resp := tgbotapi.NewCallback(cb.ID, text)
	resp.ShowAlert = alert
	if _, err := b.out.Request(resp); err != nil {
		b.log.Warn("answer callback failed", "err", err)
	}
}

func (b *Bot) editTextAndClear(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID, messageID, text,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	b.send(edit)
}

func (b *Bot) editTextWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb))
}

// clearMarkup removes the inline buttons of an earlier step.
func (b *Bot) clearMarkup(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	rm := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	b.send(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, rm))
}

// parseIndex reads the numeric suffix of callback data like "reg:cat:3".
func parseIndex(data, prefix string) (int, bool) {
	if !strings.HasPrefix(data, prefix) {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(data, prefix))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// userMessage turns a workflow error into the text shown in the chat.
func userMessage(err error) string {
	switch {
	case errors.Is(err, scancode.ErrInvalidFormat):
		return "Código inválido: isso não parece um QR code de Ecoponto."
	case errors.Is(err, scancode.ErrMalformed):
		return "Código de Ecoponto mal formado. Tente escanear novamente."
	case errors.Is(err, award.ErrUnknownMaterial):
		return "Material não encontrado na tabela de pontos."
	case errors.Is(err, award.ErrInvalidQuantity):
		return "Quantidade inválida. Informe um número maior que zero, por exemplo 2,5."
	case errors.Is(err, award.ErrZeroAward):
		return "Essa quantidade não gera pontos. Informe uma quantidade maior."
	case errors.Is(err, submission.ErrUnauthenticated):
		return "Não encontramos sua conta. Envie /start e tente de novo."
	case errors.Is(err, submission.ErrIncompleteDraft):
		return "Registro incompleto. Recomece com /registrar."
	case errors.Is(err, submission.ErrStoreUnavailable):
		return "Não foi possível salvar agora. Seus dados foram mantidos: toque em Confirmar para tentar de novo."
	case errors.Is(err, registration.ErrSubmissionInFlight):
		return "Aguarde, o envio está em andamento."
	case errors.Is(err, registration.ErrInvalidTransition):
		return "Essa ação não está disponível agora."
	}
	return "Erro inesperado. Tente novamente."
}

// formatPoints prints thousands with a dot: 12500 -> "12.500".
func formatPoints(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}
