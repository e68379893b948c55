package handlers

import (
	"portrait-studio-bot/internal/session"
	"portrait-studio-bot/internal/studio"
)

// treatAsReference reports whether the next incoming photo fills the
// reference slot instead of replacing the portrait. A mode must be armed
// and a portrait must already exist.
func treatAsReference(st session.State) bool {
	return st.Mode != studio.ModeNone && st.Source != nil
}

// routeModel picks the model for a prompt. Without a portrait to edit the
// prompt goes to the text-to-image model.
func routeModel(st session.State) studio.Model {
	if st.Source == nil {
		return studio.ModelImagen
	}
	return st.Model
}
