package studio

import (
	"fmt"
	"strings"
)

// composeEditPrompt builds the instruction text that accompanies the image
// parts of an edit call. The wire order is fixed as source, reference, text,
// and the wording refers to the images by that order.
func composeEditPrompt(req Request, hasReference bool, guidance string) string {
	prompt := strings.TrimSpace(req.Prompt)

	var b strings.Builder
	if !hasReference {
		b.WriteString("Edit this portrait photo according to the instructions below. Preserve the person's identity: the face must stay recognizably the same person.")
		if prompt != "" {
			b.WriteString("\n\nInstructions: ")
			b.WriteString(prompt)
		}
		return b.String()
	}

	b.WriteString("You are given two images. The first image is the person to edit. The second image is a visual reference.")
	b.WriteString("\nPreserve the identity of the person in the first image: the face must stay recognizably the same person.")

	if g := strings.TrimSpace(guidance); g != "" {
		b.WriteString(fmt.Sprintf("\n\nVisual description of the reference: %q", g))
	}

	if d := transferDirective(req.Mode, req.CustomFeature); d != "" {
		b.WriteString("\n\n")
		b.WriteString(d)
	}

	if prompt != "" {
		b.WriteString("\n\nAdditional instructions: ")
		b.WriteString(prompt)
	}

	return b.String()
}
