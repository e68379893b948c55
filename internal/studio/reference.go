package studio

import (
	"fmt"
	"strings"
)

type ReferenceMode string

const (
	ModeNone        ReferenceMode = ""
	ModePose        ReferenceMode = "pose"
	ModeOutfit      ReferenceMode = "outfit"
	ModeExpression  ReferenceMode = "expression"
	ModeStyle       ReferenceMode = "style"
	ModeBackground  ReferenceMode = "background"
	ModeComposition ReferenceMode = "composition"
	ModeCustom      ReferenceMode = "custom"
)

type modeTemplate struct {
	Title     string
	Question  string
	Directive string
}

// modeTemplates maps each reference mode to the analysis question asked
// about the reference image and the transfer directive folded into the edit
// prompt. ModeCustom is parameterized and handled in analysisQuestion and
// transferDirective instead.
var modeTemplates = map[ReferenceMode]modeTemplate{
	ModePose: {
		Title:     "Pose",
		Question:  "Analyze the pose of the person in this image. Describe the exact position and angle of each limb, the curvature of the spine, the head tilt and the overall body orientation. Be precise and geometric.",
		Directive: "Change the person's pose so it exactly matches the pose in the second image. Treat the second image as ground truth for body positioning. Keep the face, hairstyle, outfit and background from the first image.",
	},
	ModeOutfit: {
		Title:     "Outfit",
		Question:  "Describe the outfit in this image in exhaustive detail: garment types, cut, fabric and material, colors, patterns, textures, seams and accessories. Ignore the person wearing it and describe only the clothing.",
		Directive: "Dress the person from the first image in the exact outfit shown in the second image. Reproduce the garments as a pixel-level replica with the same cut, fabric, colors, patterns and details, draped naturally on the person's body.",
	},
	ModeExpression: {
		Title:     "Expression",
		Question:  "Describe the facial expression in this image: the emotion it conveys, the overall mood, and what the eyes, eyebrows and mouth are doing.",
		Directive: "Change the facial expression of the person in the first image to convey the same emotion as the second image. Keep the identity, features, pose and everything else from the first image unchanged.",
	},
	ModeStyle: {
		Title:     "Artistic style",
		Question:  "Describe the artistic style of this image: the medium, rendering technique, color palette, lighting and overall visual treatment.",
		Directive: "Re-render the first image entirely in the artistic style of the second image, using the same medium, technique, palette and lighting treatment. The person must remain clearly recognizable.",
	},
	ModeBackground: {
		Title:     "Background",
		Question:  "Describe the setting of this image: the location, environment, background elements, lighting and atmosphere. Ignore any people in it.",
		Directive: "Place the person from the first image into the setting shown in the second image. Recreate that environment around the person and match the ambient lighting on the person to it.",
	},
	ModeComposition: {
		Title:     "Composition",
		Question:  "Describe the composition of this image: the camera angle, framing, subject placement, perspective and depth of field.",
		Directive: "Recompose the first image to match the composition of the second image: the same camera angle, framing and subject placement.",
	},
	ModeCustom: {
		Title: "Custom feature",
	},
}

// fallbackFeature stands in when a custom transfer arrives without a feature
// description, so the composed text never carries an empty placeholder.
const fallbackFeature = "most distinctive visual feature"

func ReferenceModes() []ReferenceMode {
	return []ReferenceMode{ModePose, ModeOutfit, ModeExpression, ModeStyle, ModeBackground, ModeComposition, ModeCustom}
}

func (m ReferenceMode) Valid() bool {
	_, ok := modeTemplates[m]
	return ok
}

func (m ReferenceMode) Title() string {
	return modeTemplates[m].Title
}

func analysisQuestion(mode ReferenceMode, customFeature string) string {
	if mode == ModeCustom {
		feature := strings.TrimSpace(customFeature)
		if feature == "" {
			return fmt.Sprintf("Describe the %s of this image in precise visual detail.", fallbackFeature)
		}
		return fmt.Sprintf("Describe the %s in this image in precise visual detail.", feature)
	}
	return modeTemplates[mode].Question
}

func transferDirective(mode ReferenceMode, customFeature string) string {
	if mode == ModeCustom {
		feature := strings.TrimSpace(customFeature)
		if feature == "" {
			feature = fallbackFeature
		}
		return fmt.Sprintf("Transfer the %s from the second image onto the person in the first image. Preserve the person's identity and leave everything unrelated to it untouched.", feature)
	}
	return modeTemplates[mode].Directive
}
