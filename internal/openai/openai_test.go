package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/lehigh-university-libraries/retoucher/internal/providers"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestAlphaMask(t *testing.T) {
	bw := image.NewRGBA(image.Rect(0, 0, 2, 1))
	bw.Set(0, 0, color.White)
	bw.Set(1, 0, color.Black)

	out := AlphaMask(bw)
	if a := out.NRGBAAt(0, 0).A; a != 0 {
		t.Errorf("white pixel alpha = %d, want 0", a)
	}
	if a := out.NRGBAAt(1, 0).A; a != 255 {
		t.Errorf("black pixel alpha = %d, want 255", a)
	}
}

func TestEditImage(t *testing.T) {
	source := pngBytes(t, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	result := pngBytes(t, image.NewRGBA(image.Rect(0, 0, 4, 4)))

	var gotPrompt, gotModel string
	var gotMask bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/edits" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		gotPrompt = r.FormValue("prompt")
		gotModel = r.FormValue("model")
		_, _, err := r.FormFile("mask")
		gotMask = err == nil
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(result)}},
		})
	}))
	defer srv.Close()

	o := New("test-key", srv.URL)
	res, err := o.EditImage(context.Background(), providers.Request{
		Kind:     providers.KindRetouch,
		Prompt:   "remove the stain",
		Image:    source,
		MIMEType: "image/png",
		Width:    4,
		Height:   4,
		Region:   &models.Region{X: 1, Y: 1, Width: 2, Height: 2},
	})
	if err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	if !bytes.Equal(res.Data, result) {
		t.Error("result bytes differ")
	}
	if gotPrompt != "remove the stain" || gotModel != DefaultModel {
		t.Errorf("prompt=%q model=%q", gotPrompt, gotModel)
	}
	if !gotMask {
		t.Error("region edit should send a mask")
	}
}

func TestEditImageErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"empty data", http.StatusOK, `{"data":[]}`, providers.ErrEmptyResponse},
		{"moderation", http.StatusBadRequest, `{"error":{"message":"blocked","code":"moderation_blocked"}}`, providers.ErrRefused},
		{"server error", http.StatusInternalServerError, `oops`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New("k", srv.URL).EditImage(context.Background(), providers.Request{Prompt: "x", Image: []byte("img")})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("", "http://localhost").EditImage(context.Background(), providers.Request{}); err == nil {
		t.Error("expected error without API key")
	}
}
