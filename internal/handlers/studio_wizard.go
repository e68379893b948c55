package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"portrait-studio-bot/internal/session"
	"portrait-studio-bot/internal/studio"
)

const studioCallbackPrefix = "st"

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, studioCallbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		h.tg.AnswerCallback(q.ID, "This menu belongs to someone else.", true)
		return nil
	}

	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	action := parts[2]
	// Ratio values carry a colon, so the argument is everything after the
	// action.
	arg := strings.Join(parts[3:], ":")

	switch action {
	case "mode":
		return h.applyModeChoice(chatID, ownerID, msgID, q.ID, arg)
	case "model":
		return h.applyModelChoice(chatID, ownerID, msgID, q.ID, arg)
	case "aspect":
		return h.applyAspectChoice(chatID, ownerID, msgID, q.ID, arg)
	case "reuse":
		return h.reuseLastResult(chatID, ownerID, q.ID)
	default:
		h.tg.AnswerCallback(q.ID, "OK", false)
		return nil
	}
}

func (h *Handler) applyModeChoice(chatID, ownerID int64, msgID int, callbackID, arg string) error {
	if arg == "off" {
		h.sessions.Update(chatID, ownerID, func(s *session.State) {
			s.Mode = studio.ModeNone
			s.Reference = nil
			s.CustomFeature = ""
			s.AwaitingFeature = false
		})
		h.tg.AnswerCallback(callbackID, "Reference mode off", false)
		return h.tg.EditText(chatID, msgID,
			"🚫 Reference mode is off. Photos you send replace the portrait.")
	}

	mode := studio.ReferenceMode(arg)
	if !mode.Valid() {
		h.tg.AnswerCallback(callbackID, "Unknown mode", false)
		return nil
	}

	if mode == studio.ModeCustom {
		h.sessions.Update(chatID, ownerID, func(s *session.State) {
			s.Mode = mode
			s.AwaitingFeature = true
		})
		h.tg.AnswerCallback(callbackID, "Custom mode", false)
		return h.tg.EditText(chatID, msgID,
			"🎛 Custom mode.\n✍️ Describe which feature of the reference to transfer "+
				"(for example \"the silver necklace\").")
	}

	h.sessions.Update(chatID, ownerID, func(s *session.State) {
		s.Mode = mode
		s.AwaitingFeature = false
	})
	h.tg.AnswerCallback(callbackID, mode.Title(), false)
	return h.tg.EditText(chatID, msgID, fmt.Sprintf(
		"🖇 Reference mode: %s.\n📷 Send the reference photo now.", mode.Title()))
}

func (h *Handler) applyModelChoice(chatID, ownerID int64, msgID int, callbackID, arg string) error {
	model := studio.Model(arg)
	if !model.Valid() {
		h.tg.AnswerCallback(callbackID, "Unknown model", false)
		return nil
	}

	h.sessions.Update(chatID, ownerID, func(s *session.State) {
		s.Model = model
	})
	h.tg.AnswerCallback(callbackID, modelLabel(model), false)

	text := fmt.Sprintf("🧠 Model: %s.", modelLabel(model))
	if model.TextToImage() {
		text += "\n✍️ This model creates images from text only; the portrait and reference are ignored."
	}
	return h.tg.EditText(chatID, msgID, text)
}

func (h *Handler) applyAspectChoice(chatID, ownerID int64, msgID int, callbackID, arg string) error {
	aspect := studio.AspectRatio(arg)
	if !aspect.Valid() {
		h.tg.AnswerCallback(callbackID, "Unknown ratio", false)
		return nil
	}

	h.sessions.Update(chatID, ownerID, func(s *session.State) {
		s.Aspect = aspect
	})
	h.tg.AnswerCallback(callbackID, aspectLabel(aspect), false)
	return h.tg.EditText(chatID, msgID, fmt.Sprintf("📐 Aspect ratio: %s.", aspectLabel(aspect)))
}

func (h *Handler) reuseLastResult(chatID, ownerID int64, callbackID string) error {
	st := h.sessions.Get(chatID, ownerID)
	if st.LastResult == nil {
		h.tg.AnswerCallback(callbackID, "No result to reuse yet", false)
		return nil
	}

	h.sessions.Update(chatID, ownerID, func(s *session.State) {
		s.Source = s.LastResult
		s.Reference = nil
	})
	h.tg.AnswerCallback(callbackID, "Saved as the new portrait", false)
	return h.tg.SendText(chatID, "♻️ The last result is now your portrait. Keep editing it.")
}

func modeKeyboard(ownerID int64, current studio.ReferenceMode) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range studio.ReferenceModes() {
		label := m.Title()
		if m == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "mode", string(m))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🚫 Off", cb(ownerID, "mode", "off")),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func modelKeyboard(ownerID int64, current studio.Model) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, m := range studio.Models() {
		label := modelLabel(m)
		if m == current {
			label = "✅ " + label
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "model", string(m))),
		})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func aspectKeyboard(ownerID int64, current studio.AspectRatio) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, r := range studio.AspectRatios() {
		label := aspectLabel(r)
		if r == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "aspect", string(r))))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func reuseKeyboard(ownerID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("♻️ Use as source", cb(ownerID, "reuse")),
		},
	)
}

func statusText(st session.State) string {
	var b strings.Builder
	b.WriteString("🎭 Session\n\n")

	if st.Source != nil {
		b.WriteString("Portrait: saved ✅\n")
	} else {
		b.WriteString("Portrait: (none)\n")
	}

	switch {
	case st.Reference != nil:
		b.WriteString(fmt.Sprintf("Reference: saved (%s)\n", st.Mode.Title()))
	case st.Mode != studio.ModeNone:
		b.WriteString(fmt.Sprintf("Reference: waiting for photo (%s)\n", st.Mode.Title()))
	default:
		b.WriteString("Reference: (none)\n")
	}

	if st.Mode == studio.ModeCustom && strings.TrimSpace(st.CustomFeature) != "" {
		b.WriteString("Custom focus: " + truncateLine(st.CustomFeature, 80) + "\n")
	}

	b.WriteString("Model: " + modelLabel(st.Model) + "\n")
	b.WriteString("Aspect: " + aspectLabel(st.Aspect) + "\n")
	b.WriteString(fmt.Sprintf("Results: %d\n", len(st.History)))

	if st.AwaitingFeature {
		b.WriteString("\n✍️ Waiting for the custom feature description.")
	}

	return strings.TrimSpace(b.String())
}

func historyText(st session.State) string {
	if len(st.History) == 0 {
		return "🕘 No results yet. Send a portrait and a prompt."
	}

	var b strings.Builder
	b.WriteString("🕘 Recent results:\n")
	for i, rec := range st.History {
		prompt := "(no prompt)"
		if rec.Prompt != "" {
			prompt = strconv.Quote(truncateLine(rec.Prompt, 60))
		}
		b.WriteString(fmt.Sprintf("%d. %s (%s, %s)\n",
			i+1, prompt, modelLabel(rec.Model), rec.CreatedAt.Format("Jan 2 15:04")))
	}
	b.WriteString("\n♻️ Tip: press \"Use as source\" under a result to keep editing it.")
	return b.String()
}

func modelLabel(m studio.Model) string {
	switch m {
	case studio.ModelFlashImage:
		return "⚡ Flash"
	case studio.ModelProImage:
		return "💎 Pro"
	case studio.ModelImagen:
		return "🖼 Imagen"
	}
	return string(m)
}

func aspectLabel(r studio.AspectRatio) string {
	if r == studio.RatioSource {
		return "Same as source"
	}
	return string(r)
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", studioCallbackPrefix, ownerID, strings.Join(parts, ":"))
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
