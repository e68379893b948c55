package studio

type Model string

const (
	// ModelFlashImage is the fast editing model used by default.
	ModelFlashImage Model = "gemini-2.5-flash-image"
	// ModelProImage is the higher-quality editing model.
	ModelProImage Model = "gemini-3-pro-image-preview"
	// ModelImagen only generates from text and cannot edit.
	ModelImagen Model = "imagen-4.0-generate-001"
)

const defaultAnalysisModel = "gemini-2.5-flash"

func Models() []Model {
	return []Model{ModelFlashImage, ModelProImage, ModelImagen}
}

func (m Model) Valid() bool {
	switch m {
	case ModelFlashImage, ModelProImage, ModelImagen:
		return true
	}
	return false
}

// TextToImage reports whether the model takes no input image at all.
func (m Model) TextToImage() bool {
	return m == ModelImagen
}
