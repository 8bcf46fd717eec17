package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/retoucher/internal/images"
	"github.com/lehigh-university-libraries/retoucher/internal/providers"
)

const (
	DefaultModel = "gpt-image-1"
	DefaultURL   = "https://api.openai.com"
)

// OpenAI is a provider for the OpenAI image edit endpoint
type OpenAI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New returns a new OpenAI provider. Empty values fall back to
// OPENAI_API_KEY and OPENAI_URL.
func New(apiKey, baseURL string) *OpenAI {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_URL")
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &OpenAI{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// EditImage posts the image, its alpha mask and the prompt to images/edits.
func (o *OpenAI) EditImage(ctx context.Context, req providers.Request) (*providers.Result, error) {
	if o.apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	mask, err := editMask(req)
	if err != nil {
		return nil, err
	}

	body, contentType, err := multipartBody(req, mask)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/images/edits", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apiError(resp.StatusCode, raw)
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	if len(response.Data) == 0 || response.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image returned from OpenAI: %w", providers.ErrEmptyResponse)
	}

	data, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return &providers.Result{Data: data, MIMEType: "image/png"}, nil
}

func apiError(status int, raw []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		if payload.Error.Code == "moderation_blocked" || payload.Error.Code == "content_policy_violation" {
			return fmt.Errorf("%w: %s", providers.ErrRefused, payload.Error.Message)
		}
		return fmt.Errorf("received non-200 status code: %d - %s", status, payload.Error.Message)
	}
	return fmt.Errorf("received non-200 status code: %d - %s", status, string(raw))
}

// editMask turns the request's localization into the alpha mask the edit
// endpoint expects: transparent where the model may paint.
func editMask(req providers.Request) ([]byte, error) {
	var bw image.Image
	switch {
	case len(req.Mask) > 0:
		img, _, err := image.Decode(bytes.NewReader(req.Mask))
		if err != nil {
			return nil, fmt.Errorf("failed to decode mask: %w", err)
		}
		bw = img
	case req.Region != nil:
		r := req.Region
		bw = images.RegionMask(req.Width, req.Height, image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height))
	default:
		return nil, nil
	}
	return images.EncodePNG(AlphaMask(bw))
}

// AlphaMask converts a black/white mask into an NRGBA image that is fully
// transparent where the source is white and opaque black elsewhere.
func AlphaMask(bw image.Image) *image.NRGBA {
	b := bw.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray := color.GrayModel.Convert(bw.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			a := uint8(255)
			if gray.Y >= 128 {
				a = 0
			}
			out.SetNRGBA(x, y, color.NRGBA{A: a})
		}
	}
	return out
}

func multipartBody(req providers.Request, mask []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	fields := map[string]string{
		"model":  model,
		"prompt": req.Prompt,
		"n":      "1",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write %s field: %w", k, err)
		}
	}

	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	if err := writeFile(w, "image", "image."+strings.TrimPrefix(mimeType, "image/"), mimeType, req.Image); err != nil {
		return nil, "", err
	}
	if mask != nil {
		if err := writeFile(w, "mask", "mask.png", "image/png", mask); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, filename, mimeType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write %s part: %w", field, err)
	}
	return nil
}
