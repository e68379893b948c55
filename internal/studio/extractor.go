package studio

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// describeReference turns a reference image into free-text guidance through
// one analysis call. Every failure here is logged and downgraded to an empty
// string; generation proceeds without guidance rather than failing.
func (g *Generator) describeReference(ctx context.Context, log *slog.Logger, ref Asset, mode ReferenceMode, customFeature string) string {
	question := analysisQuestion(mode, customFeature)
	if question == "" {
		return ""
	}

	imagePart, err := compressedPart(ref)
	if err != nil {
		log.Warn("reference analysis skipped", "err", err)
		return ""
	}
	parts := []*genai.Part{imagePart, genai.NewPartFromText(question)}

	var resp *genai.GenerateContentResponse
	err = g.retry.run(ctx, log, func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.client.GenerateContent(ctx, g.analysisModel, parts, nil)
		return callErr
	})
	if err != nil {
		log.Warn("reference analysis failed", "err", err)
		return ""
	}

	text := strings.TrimSpace(textFromResponse(resp))
	if text == "" {
		log.Warn("reference analysis returned no text")
	}
	return text
}

func textFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
