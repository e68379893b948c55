package studio

import (
	"context"

	"google.golang.org/genai"
)

type contentCall struct {
	model string
	parts []*genai.Part
	cfg   *genai.GenerateContentConfig
}

type imagesCall struct {
	model  string
	prompt string
	cfg    *genai.GenerateImagesConfig
}

// fakeRemote scripts the remote boundary. Responses and errors are consumed
// per GenerateContent call in order; every call is recorded for assertions.
type fakeRemote struct {
	contentCalls []contentCall
	imagesCalls  []imagesCall

	contentResponses []*genai.GenerateContentResponse
	contentErrs      []error
	imagesResponse   *genai.GenerateImagesResponse
	imagesErr        error
}

func (f *fakeRemote) GenerateContent(ctx context.Context, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contentCalls = append(f.contentCalls, contentCall{model: model, parts: parts, cfg: cfg})

	idx := len(f.contentCalls) - 1
	var err error
	if idx < len(f.contentErrs) {
		err = f.contentErrs[idx]
	}
	var resp *genai.GenerateContentResponse
	if idx < len(f.contentResponses) {
		resp = f.contentResponses[idx]
	}
	return resp, err
}

func (f *fakeRemote) GenerateImages(ctx context.Context, model string, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.imagesCalls = append(f.imagesCalls, imagesCall{model: model, prompt: prompt, cfg: cfg})
	return f.imagesResponse, f.imagesErr
}

func imageResponse(mime string, data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: mime, Data: data}}},
			},
		}},
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

func finishResponse(reason genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: reason}},
	}
}
