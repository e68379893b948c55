package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"portrait-studio-bot/internal/imaging"
)

func testAsset(t *testing.T, w, h int) Asset {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8((x + y) % 256), B: 90, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return AssetFromBytes(buf.Bytes(), "image/png")
}

func newTestGenerator(remote RemoteClient) *Generator {
	return New(Options{
		Client: remote,
		Retry: Retry{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	})
}

func TestGenerateEditWithoutReference(t *testing.T) {
	remote := &fakeRemote{contentResponses: []*genai.GenerateContentResponse{
		imageResponse("image/png", []byte("edited-bytes")),
	}}
	gen := newTestGenerator(remote)

	source := testAsset(t, 800, 600)
	out, err := gen.Generate(context.Background(), &source, nil, Request{
		Prompt: "add sunglasses",
		Aspect: RatioSource,
		Model:  ModelFlashImage,
	})
	require.NoError(t, err)

	require.Len(t, remote.contentCalls, 1)
	call := remote.contentCalls[0]
	assert.Equal(t, string(ModelFlashImage), call.model)

	require.Len(t, call.parts, 2)
	require.NotNil(t, call.parts[0].InlineData)
	assert.Equal(t, imaging.MimeJPEG, call.parts[0].InlineData.MIMEType)
	assert.Contains(t, call.parts[1].Text, "add sunglasses")

	require.NotNil(t, call.cfg)
	require.NotNil(t, call.cfg.ImageConfig)
	assert.Equal(t, "4:3", call.cfg.ImageConfig.AspectRatio)
	assert.Empty(t, call.cfg.ImageConfig.ImageSize)
	assert.Len(t, call.cfg.SafetySettings, 4)
	assert.ElementsMatch(t, []string{"IMAGE", "TEXT"}, call.cfg.ResponseModalities)

	assert.Equal(t, "image/png", out.MimeType)
	raw, err := out.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("edited-bytes"), raw)
}

func TestGenerateFoldsReferenceGuidance(t *testing.T) {
	remote := &fakeRemote{contentResponses: []*genai.GenerateContentResponse{
		textResponse("a red silk dress with golden embroidery"),
		imageResponse("image/png", []byte("styled")),
	}}
	gen := newTestGenerator(remote)

	source := testAsset(t, 900, 1200)
	reference := testAsset(t, 640, 640)

	_, err := gen.Generate(context.Background(), &source, &reference, Request{
		Aspect: Ratio3x4,
		Mode:   ModeOutfit,
		Model:  ModelFlashImage,
	})
	require.NoError(t, err)

	require.Len(t, remote.contentCalls, 2)

	analysis := remote.contentCalls[0]
	assert.Equal(t, defaultAnalysisModel, analysis.model)
	require.Len(t, analysis.parts, 2)
	assert.NotNil(t, analysis.parts[0].InlineData)
	assert.Contains(t, analysis.parts[1].Text, "outfit")
	assert.Contains(t, analysis.parts[1].Text, "Ignore the person")
	assert.Nil(t, analysis.cfg)

	edit := remote.contentCalls[1]
	require.Len(t, edit.parts, 3)
	assert.NotNil(t, edit.parts[0].InlineData)
	assert.NotNil(t, edit.parts[1].InlineData)
	text := edit.parts[2].Text
	assert.Contains(t, text, `"a red silk dress with golden embroidery"`)
	assert.Contains(t, text, "pixel-level replica")
	assert.Equal(t, "3:4", edit.cfg.ImageConfig.AspectRatio)
}

func TestGenerateTextToImage(t *testing.T) {
	remote := &fakeRemote{imagesResponse: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{
			Image: &genai.Image{ImageBytes: []byte("imagen-bytes"), MIMEType: "image/jpeg"},
		}},
	}}
	gen := newTestGenerator(remote)

	out, err := gen.Generate(context.Background(), nil, nil, Request{
		Prompt: "a lighthouse at dawn",
		Aspect: RatioSource,
		Model:  ModelImagen,
	})
	require.NoError(t, err)

	assert.Empty(t, remote.contentCalls)
	require.Len(t, remote.imagesCalls, 1)
	call := remote.imagesCalls[0]
	assert.Equal(t, string(ModelImagen), call.model)
	assert.Equal(t, "a lighthouse at dawn", call.prompt)
	require.NotNil(t, call.cfg)
	assert.Equal(t, "1:1", call.cfg.AspectRatio)
	assert.Equal(t, int32(1), call.cfg.NumberOfImages)
	assert.Equal(t, imaging.MimeJPEG, call.cfg.OutputMIMEType)

	assert.Equal(t, "image/jpeg", out.MimeType)
	raw, err := out.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("imagen-bytes"), raw)
}

func TestGenerateBlockedBySafety(t *testing.T) {
	remote := &fakeRemote{contentResponses: []*genai.GenerateContentResponse{
		finishResponse(genai.FinishReasonSafety),
	}}
	gen := newTestGenerator(remote)

	source := testAsset(t, 512, 512)
	_, err := gen.Generate(context.Background(), &source, nil, Request{
		Prompt: "change the lighting",
		Model:  ModelFlashImage,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContentBlocked)
	assert.Contains(t, err.Error(), "SAFETY")
	assert.Contains(t, err.Error(), "different reference")
}

func TestGenerateWithoutClient(t *testing.T) {
	gen := New(Options{})

	_, err := gen.Generate(context.Background(), nil, nil, Request{
		Prompt: "anything",
		Model:  ModelImagen,
	})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGenerateTextOnlyAnswer(t *testing.T) {
	remote := &fakeRemote{contentResponses: []*genai.GenerateContentResponse{
		textResponse("sorry, I cannot edit this image"),
	}}
	gen := newTestGenerator(remote)

	source := testAsset(t, 300, 300)
	_, err := gen.Generate(context.Background(), &source, nil, Request{
		Prompt: "edit",
		Model:  ModelFlashImage,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Contains(t, err.Error(), "text instead of an image")
}

func TestGenerateProModelRequestsLargerOutput(t *testing.T) {
	remote := &fakeRemote{contentResponses: []*genai.GenerateContentResponse{
		imageResponse("image/png", []byte("hq")),
	}}
	gen := newTestGenerator(remote)

	source := testAsset(t, 1000, 1000)
	_, err := gen.Generate(context.Background(), &source, nil, Request{
		Prompt: "sharpen the details",
		Aspect: Ratio1x1,
		Model:  ModelProImage,
	})
	require.NoError(t, err)

	require.Len(t, remote.contentCalls, 1)
	cfg := remote.contentCalls[0].cfg
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.ImageConfig)
	assert.Equal(t, proImageSize, cfg.ImageConfig.ImageSize)
}

func TestGenerateExtractionFailureIsAbsorbed(t *testing.T) {
	remote := &fakeRemote{
		contentErrs: []error{errors.New("analysis model unavailable")},
		contentResponses: []*genai.GenerateContentResponse{
			nil,
			imageResponse("image/png", []byte("still-fine")),
		},
	}
	gen := newTestGenerator(remote)

	source := testAsset(t, 800, 800)
	reference := testAsset(t, 400, 400)
	out, err := gen.Generate(context.Background(), &source, &reference, Request{
		Prompt: "make it dramatic",
		Aspect: Ratio1x1,
		Mode:   ModePose,
		Model:  ModelFlashImage,
	})
	require.NoError(t, err)
	require.Len(t, remote.contentCalls, 2)

	text := remote.contentCalls[1].parts[2].Text
	assert.NotContains(t, text, "Visual description")
	assert.Contains(t, text, "ground truth")

	raw, err := out.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("still-fine"), raw)
}

func TestGenerateRetriesRateLimitedEdit(t *testing.T) {
	remote := &fakeRemote{
		contentErrs: []error{errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED"), nil},
		contentResponses: []*genai.GenerateContentResponse{
			nil,
			imageResponse("image/png", []byte("after-retry")),
		},
	}
	gen := newTestGenerator(remote)

	source := testAsset(t, 640, 480)
	out, err := gen.Generate(context.Background(), &source, nil, Request{
		Prompt: "retouch",
		Model:  ModelFlashImage,
	})
	require.NoError(t, err)
	assert.Len(t, remote.contentCalls, 2)

	raw, err := out.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("after-retry"), raw)
}

func TestGenerateUndecodableSource(t *testing.T) {
	remote := &fakeRemote{}
	gen := newTestGenerator(remote)

	source := AssetFromBytes([]byte("not an image"), "image/png")
	_, err := gen.Generate(context.Background(), &source, nil, Request{
		Prompt: "retouch",
		Model:  ModelFlashImage,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, imaging.ErrDecode)
	assert.Empty(t, remote.contentCalls)
}

func TestGenerateDefaultsToFlashModel(t *testing.T) {
	remote := &fakeRemote{contentResponses: []*genai.GenerateContentResponse{
		imageResponse("image/png", []byte("x")),
	}}
	gen := newTestGenerator(remote)

	source := testAsset(t, 200, 200)
	_, err := gen.Generate(context.Background(), &source, nil, Request{Prompt: "p"})
	require.NoError(t, err)

	require.Len(t, remote.contentCalls, 1)
	assert.Equal(t, string(ModelFlashImage), remote.contentCalls[0].model)
}
