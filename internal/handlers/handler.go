package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"portrait-studio-bot/internal/mediagroup"
	"portrait-studio-bot/internal/session"
	"portrait-studio-bot/internal/studio"
	"portrait-studio-bot/internal/telegram"
)

type Options struct {
	Telegram  *telegram.Client
	Generator *studio.Generator
	Sessions  *session.Store
	Logger    *slog.Logger
}

type Handler struct {
	tg         *telegram.Client
	gen        *studio.Generator
	sessions   *session.Store
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:       opts.Telegram,
		gen:      opts.Generator,
		sessions: opts.Sessions,
		logger:   logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}

	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, msg)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, userID, msg.Text)
	}

	return nil
}

// HandleAlbum consumes a flushed media group: the first photo becomes the
// portrait, the second the reference. Extra photos are ignored.
func (h *Handler) HandleAlbum(ctx context.Context, album mediagroup.Album) {
	if len(album.FileIDs) == 0 {
		return
	}

	fileIDs := album.FileIDs
	if len(fileIDs) > 2 {
		fileIDs = fileIDs[:2]
	}

	assets, err := h.downloadAssets(ctx, fileIDs)
	if err != nil {
		h.logger.Error("album download failed", "err", err)
		_ = h.tg.SendText(album.ChatID, "❌ Could not download the album photos. Please send them again.")
		return
	}

	hasReference := len(assets) >= 2
	h.sessions.Update(album.ChatID, album.UserID, func(s *session.State) {
		src := assets[0]
		s.Source = &src
		if hasReference {
			ref := assets[1]
			s.Reference = &ref
			if s.Mode == studio.ModeNone {
				s.Mode = studio.ModeOutfit
			}
		}
	})

	prompt := strings.TrimSpace(album.Prompt)
	if prompt == "" && !hasReference {
		_ = h.tg.SendText(album.ChatID, "📸 Portrait saved.\n✍️ Tell me what to change.")
		return
	}

	if err := h.generate(ctx, album.ChatID, album.UserID, prompt); err != nil {
		h.logger.Error("album generation failed", "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID,
			"🎭 Portrait Studio\n\n"+
				"Send me a portrait photo and tell me what to change.\n\n"+
				"How it works:\n"+
				"1. Send a photo - it becomes your portrait.\n"+
				"2. Optionally pick /mode and send a second photo as a reference.\n"+
				"3. Send a text prompt - I generate the edited portrait.\n\n"+
				"You can also send two photos as an album (portrait + reference) "+
				"with the prompt as the caption, or send just a prompt with no "+
				"photo to create an image from scratch.\n\n"+
				"Commands:\n"+
				"/mode - what a reference photo controls\n"+
				"/model - pick the image model\n"+
				"/aspect - output aspect ratio\n"+
				"/status - current settings\n"+
				"/history - recent results\n"+
				"/clear - start over",
		)
	case "help":
		return h.tg.SendText(chatID,
			"🎭 Help\n\n"+
				"📸 One photo - saved as your portrait.\n"+
				"🖇 One photo while a /mode is armed - saved as the reference.\n"+
				"🖼 Album of two photos - portrait + reference, caption is the prompt.\n"+
				"✍️ Text - runs a generation with your current settings.\n\n"+
				"/mode - pose, outfit, expression, style, background, composition or custom\n"+
				"/model - Flash (fast), Pro (quality) or Imagen (text-to-image)\n"+
				"/aspect - output ratio, including \"same as source\"\n"+
				"/status - show the session\n"+
				"/history - recent results\n"+
				"/clear - forget everything",
		)
	case "mode":
		st := h.sessions.Get(chatID, userID)
		return h.tg.SendTextWithKeyboard(chatID,
			"🖇 What should a reference photo control?",
			modeKeyboard(userID, st.Mode))
	case "model":
		st := h.sessions.Get(chatID, userID)
		return h.tg.SendTextWithKeyboard(chatID,
			"🧠 Pick the image model:",
			modelKeyboard(userID, st.Model))
	case "aspect":
		st := h.sessions.Get(chatID, userID)
		return h.tg.SendTextWithKeyboard(chatID,
			"📐 Pick the output aspect ratio:",
			aspectKeyboard(userID, st.Aspect))
	case "status":
		st := h.sessions.Get(chatID, userID)
		return h.tg.SendText(chatID, statusText(st))
	case "history":
		st := h.sessions.Get(chatID, userID)
		return h.tg.SendText(chatID, historyText(st))
	case "clear":
		h.sessions.Reset(chatID, userID)
		return h.tg.SendText(chatID, "🧹 Session cleared. Send a new portrait to start over.")
	default:
		return h.tg.SendText(chatID, "❓ Unknown command. Try /help.")
	}
}

func (h *Handler) handleText(ctx context.Context, chatID, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	st := h.sessions.Get(chatID, userID)
	if st.AwaitingFeature {
		h.sessions.Update(chatID, userID, func(s *session.State) {
			s.CustomFeature = text
			s.AwaitingFeature = false
		})
		return h.tg.SendText(chatID, fmt.Sprintf(
			"✅ Custom focus saved: %q.\n📷 Now send the reference photo.", text))
	}

	return h.generate(ctx, chatID, userID, text)
}

func (h *Handler) handlePhoto(ctx context.Context, chatID, userID int64, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Photo{
			ChatID:       chatID,
			UserID:       userID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       photo.FileID,
		})
		return nil
	}

	assets, err := h.downloadAssets(ctx, []string{photo.FileID})
	if err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Could not download the photo. Please send it again.")
	}
	asset := assets[0]

	st := h.sessions.Get(chatID, userID)
	caption := strings.TrimSpace(msg.Caption)

	if treatAsReference(st) {
		h.sessions.Update(chatID, userID, func(s *session.State) {
			s.Reference = &asset
		})
		if caption != "" {
			return h.generate(ctx, chatID, userID, caption)
		}
		return h.tg.SendText(chatID, fmt.Sprintf(
			"🖇 Reference saved (%s).\n✍️ Send a prompt to generate.", st.Mode.Title()))
	}

	h.sessions.Update(chatID, userID, func(s *session.State) {
		s.Source = &asset
	})
	if caption != "" {
		return h.generate(ctx, chatID, userID, caption)
	}
	return h.tg.SendText(chatID,
		"📸 Portrait saved.\n✍️ Tell me what to change, or pick /mode and send a reference photo.")
}

func (h *Handler) generate(ctx context.Context, chatID, userID int64, prompt string) error {
	st := h.sessions.Get(chatID, userID)
	model := routeModel(st)

	h.tg.SendUploadingPhoto(chatID)

	result, err := h.gen.Generate(ctx, st.Source, st.Reference, studio.Request{
		Prompt:        prompt,
		Aspect:        st.Aspect,
		Mode:          st.Mode,
		CustomFeature: st.CustomFeature,
		Model:         model,
	})
	if err != nil {
		h.logger.Error("generation failed", "err", err, "chat_id", chatID, "model", string(model))
		return h.tg.SendText(chatID, friendlyError(err))
	}

	data, err := result.Bytes()
	if err != nil {
		h.logger.Error("result payload is not valid base64", "err", err)
		return h.tg.SendText(chatID, friendlyError(err))
	}

	caption := "✅ Done"
	if p := strings.TrimSpace(prompt); p != "" {
		caption = "✅ " + truncateLine(p, 120)
	}

	kb := reuseKeyboard(userID)
	if err := h.tg.SendPhoto(chatID, data, result.MimeType, caption, &kb); err != nil {
		return err
	}

	h.sessions.Update(chatID, userID, func(s *session.State) {
		res := result
		s.LastResult = &res
	})
	h.sessions.AddRecord(chatID, userID, session.Record{
		Prompt:    strings.TrimSpace(prompt),
		Model:     model,
		Mode:      st.Mode,
		CreatedAt: time.Now(),
	})

	return nil
}

func (h *Handler) downloadAssets(ctx context.Context, fileIDs []string) ([]studio.Asset, error) {
	assets := make([]studio.Asset, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		i := i
		fileID := fileID
		eg.Go(func() error {
			data, mimeType, err := h.tg.DownloadFile(egCtx, fileID)
			if err != nil {
				return err
			}
			assets[i] = studio.AssetFromBytes(data, mimeType)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}
