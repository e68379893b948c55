package studio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"portrait-studio-bot/internal/imaging"
)

// RemoteClient is the slice of the Gemini surface the studio uses. It is
// satisfied by gemini.Client and by test fakes.
type RemoteClient interface {
	GenerateContent(ctx context.Context, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

type Options struct {
	Client        RemoteClient
	Logger        *slog.Logger
	AnalysisModel string
	Retry         Retry
}

// Request carries everything a single generation needs. It is built fresh
// per call and never stored.
type Request struct {
	Prompt        string
	Aspect        AspectRatio
	Mode          ReferenceMode
	CustomFeature string
	Model         Model
}

type Generator struct {
	client        RemoteClient
	logger        *slog.Logger
	analysisModel string
	retry         Retry
}

func New(opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	analysisModel := strings.TrimSpace(opts.AnalysisModel)
	if analysisModel == "" {
		analysisModel = defaultAnalysisModel
	}

	return &Generator{
		client:        opts.Client,
		logger:        logger,
		analysisModel: analysisModel,
		retry:         opts.Retry,
	}
}

// editSafetySettings blocks only high-severity content. Portrait edits trip
// stricter thresholds far too often.
var editSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
}

// proImageSize asks the higher-quality model for a larger render.
const proImageSize = "2K"

// Generate runs one transformation: either a text-to-image call or an edit
// of the source image, selected by the requested model. The returned asset
// holds the generated image; errors carry the failure kind via sentinels.
func (g *Generator) Generate(ctx context.Context, source *Asset, reference *Asset, req Request) (Asset, error) {
	if g.client == nil {
		return Asset{}, ErrNoAPIKey
	}

	model := req.Model
	if model == "" {
		model = ModelFlashImage
	}

	log := g.logger.With("request_id", uuid.NewString(), "model", string(model))

	aspect := resolveAspect(req.Aspect, source)
	log.Info("generation started",
		"aspect", string(aspect),
		"mode", string(req.Mode),
		"has_source", source != nil,
		"has_reference", reference != nil)

	if model.TextToImage() {
		return g.generateFromText(ctx, log, model, req.Prompt, aspect)
	}

	if source == nil {
		return Asset{}, errors.New("a source image is required for editing")
	}

	var guidance string
	if reference != nil && req.Mode != ModeNone {
		guidance = g.describeReference(ctx, log, *reference, req.Mode, req.CustomFeature)
	}

	srcPart, err := compressedPart(*source)
	if err != nil {
		return Asset{}, err
	}
	parts := []*genai.Part{srcPart}

	if reference != nil {
		refPart, err := compressedPart(*reference)
		if err != nil {
			return Asset{}, err
		}
		parts = append(parts, refPart)
	}

	parts = append(parts, genai.NewPartFromText(composeEditPrompt(req, reference != nil, guidance)))

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		SafetySettings:     editSafetySettings,
		ImageConfig:        &genai.ImageConfig{AspectRatio: string(aspect)},
	}
	if model == ModelProImage {
		cfg.ImageConfig.ImageSize = proImageSize
	}

	var resp *genai.GenerateContentResponse
	err = g.retry.run(ctx, log, func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.client.GenerateContent(ctx, string(model), parts, cfg)
		return callErr
	})
	if err != nil {
		if isPermissionDenied(err) {
			return Asset{}, fmt.Errorf("%w: check that your key has access to %s: %v", ErrPermission, model, err)
		}
		log.Error("edit call failed", "err", err)
		return Asset{}, err
	}

	out, err := imageFromResponse(resp)
	if err != nil {
		log.Warn("edit call returned no usable image", "err", err)
		return Asset{}, err
	}

	log.Info("generation finished", "mime", out.MimeType)
	return out, nil
}

func (g *Generator) generateFromText(ctx context.Context, log *slog.Logger, model Model, prompt string, aspect AspectRatio) (Asset, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Asset{}, errors.New("prompt is empty")
	}

	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    string(aspect),
		OutputMIMEType: imaging.MimeJPEG,
	}

	var resp *genai.GenerateImagesResponse
	err := g.retry.run(ctx, log, func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.client.GenerateImages(ctx, string(model), prompt, cfg)
		return callErr
	})
	if err != nil {
		if isPermissionDenied(err) {
			return Asset{}, fmt.Errorf("%w: check that your key has access to %s: %v", ErrPermission, model, err)
		}
		log.Error("text-to-image call failed", "err", err)
		return Asset{}, err
	}

	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return Asset{}, fmt.Errorf("%w: empty response", ErrNoImage)
	}

	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = imaging.MimeJPEG
	}

	log.Info("generation finished", "mime", mime)
	return Asset{
		Data:     base64.StdEncoding.EncodeToString(img.ImageBytes),
		MimeType: mime,
	}, nil
}

// compressedPart decodes an asset, bounds and re-encodes it (imaging
// package) and wraps the result as an inline-data part.
func compressedPart(a Asset) (*genai.Part, error) {
	raw, err := a.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", imaging.ErrDecode, err)
	}

	out, err := imaging.Compress(raw)
	if err != nil {
		return nil, err
	}

	return &genai.Part{InlineData: &genai.Blob{MIMEType: imaging.MimeJPEG, Data: out}}, nil
}

func imageFromResponse(resp *genai.GenerateContentResponse) (Asset, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return Asset{}, fmt.Errorf("%w: no response from the model", ErrNoImage)
	}

	cand := resp.Candidates[0]
	if err := blockedByFinishReason(cand.FinishReason); err != nil {
		return Asset{}, err
	}

	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			mime := strings.TrimSpace(p.InlineData.MIMEType)
			if mime == "" {
				mime = "image/png"
			}
			return Asset{
				Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
				MimeType: mime,
			}, nil
		}
	}

	return Asset{}, fmt.Errorf("%w: the model returned text instead of an image", ErrNoImage)
}

func blockedByFinishReason(reason genai.FinishReason) error {
	switch reason {
	case genai.FinishReasonUnspecified, genai.FinishReasonStop:
		return nil
	}

	switch string(reason) {
	case "SAFETY", "RECITATION", "IMAGE_SAFETY", "IMAGE_RECITATION":
		return fmt.Errorf("%w (%s): the request tripped a content filter, try a different reference or prompt", ErrContentBlocked, reason)
	default:
		return fmt.Errorf("%w (%s): the result was stopped by a filter", ErrContentBlocked, reason)
	}
}
