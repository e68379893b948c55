package handlers

import (
	"errors"

	"portrait-studio-bot/internal/imaging"
	"portrait-studio-bot/internal/studio"
)

// friendlyError turns an error from the generation pipeline into a message
// a user can act on. The rate-limit check runs first: a quota error wrapped
// in anything else is still a "try later", not a failure.
func friendlyError(err error) string {
	switch {
	case studio.IsRateLimited(err):
		return "⏳ The image service is busy right now. Try again in a minute."
	case errors.Is(err, studio.ErrNoAPIKey):
		return "⚙️ The bot is not fully configured yet: the Gemini API key is missing."
	case errors.Is(err, studio.ErrPermission):
		return "🔒 The configured key has no access to this model. Pick another one with /model."
	case errors.Is(err, studio.ErrContentBlocked):
		return "🚫 The request was blocked by a content filter. Try a different reference photo or rephrase the prompt."
	case errors.Is(err, studio.ErrNoImage):
		return "❌ The model did not return an image. Try rephrasing the prompt."
	case errors.Is(err, imaging.ErrDecode):
		return "❌ I could not read that image. Send it as a regular photo (JPEG or PNG)."
	default:
		return "❌ Something went wrong. Please try again."
	}
}
