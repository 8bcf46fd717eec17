package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/retoucher/internal/providers"
	"google.golang.org/api/option"
)

// DefaultModel is used when a request does not name one.
const DefaultModel = "gemini-2.0-flash-preview-image-generation"

// Gemini is a provider for Google Gemini
type Gemini struct {
	apiKey string
}

// New returns a new Gemini provider. An empty key falls back to GEMINI_API_KEY.
func New(apiKey string) *Gemini {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return &Gemini{apiKey: apiKey}
}

// EditImage sends the source image, the optional mask and the instruction to
// Gemini and returns the first inline image of the first candidate.
func (g *Gemini) EditImage(ctx context.Context, req providers.Request) (*providers.Result, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	modelName := req.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(req.Temperature))

	resp, err := model.GenerateContent(ctx, parts(req)...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return nil, fmt.Errorf("%w: %v", providers.ErrRefused, blocked)
		}
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	return firstImage(resp)
}

func parts(req providers.Request) []genai.Part {
	out := []genai.Part{
		genai.Text(req.Prompt),
		genai.ImageData(format(req.MIMEType), req.Image),
	}
	if len(req.Mask) > 0 {
		out = append(out,
			genai.Text("The following black and white image is the mask. Only change the areas that are white in the mask."),
			genai.ImageData("png", req.Mask),
		)
	}
	return out
}

func firstImage(resp *genai.GenerateContentResponse) (*providers.Result, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates returned from Gemini: %w", providers.ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, providers.ErrRefused
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("empty content returned from Gemini: %w", providers.ErrEmptyResponse)
	}

	var said []string
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Blob:
			if strings.HasPrefix(p.MIMEType, "image/") && len(p.Data) > 0 {
				return &providers.Result{Data: p.Data, MIMEType: p.MIMEType}, nil
			}
		case genai.Text:
			said = append(said, string(p))
		}
	}

	if len(said) > 0 {
		slog.Warn("Gemini answered with text only", "text", strings.Join(said, " "))
		return nil, fmt.Errorf("%w: %s", providers.ErrEmptyResponse, strings.Join(said, " "))
	}
	return nil, providers.ErrEmptyResponse
}

func format(mimeType string) string {
	f := strings.TrimPrefix(mimeType, "image/")
	if f == "" {
		return "png"
	}
	return f
}
