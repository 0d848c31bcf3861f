package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
)

// Reply keyboard labels.
const (
	btnRegister = "♻️ Registrar descarte"
	btnWallet   = "💰 Carteira"
	btnHistory  = "📄 Histórico"
	btnHelp     = "❓ Ajuda"
)

// Callback data.
const (
	cbBack         = "nav:back"
	cbCancel       = "nav:cancel"
	cbCategory     = "reg:cat:"
	cbMaterial     = "reg:mat:"
	cbSubmit       = "reg:submit"
	cbRestartFlow  = "reg:new"
	cbHistoryExcel = "wallet:xlsx"
)

func navKeyboard(back bool, cancel bool) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{}
	if back {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Voltar", cbBack))
	}
	if cancel {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Cancelar", cbCancel))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// categoryKeyboard lists categories by index; callback data stays well under
// Telegram's 64-byte limit whatever the names are.
func categoryKeyboard(cats []pricing.Category) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(cats)+1)
	for i, c := range cats {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Name, fmt.Sprintf("%s%d", cbCategory, i)),
		))
	}
	rows = append(rows, navKeyboard(true, true).InlineKeyboard[0])
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func materialKeyboard(rules []pricing.Rule) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rules)+1)
	for i, r := range rules {
		label := fmt.Sprintf("%s · %d pts/%s", r.MaterialID, r.PointsPerUnit, r.Unit.Label())
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbMaterial, i)),
		))
	}
	rows = append(rows, navKeyboard(true, true).InlineKeyboard[0])
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirmar", cbSubmit),
		),
		navKeyboard(true, true).InlineKeyboard[0],
	)
}

func doneKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("♻️ Novo registro", cbRestartFlow),
			tgbotapi.NewInlineKeyboardButtonData("📄 Histórico", cbHistoryExcel),
		),
	)
}

func mainReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton(btnRegister)},
			{tgbotapi.NewKeyboardButton(btnWallet), tgbotapi.NewKeyboardButton(btnHistory)},
			{tgbotapi.NewKeyboardButton(btnHelp)},
		},
	}
}
