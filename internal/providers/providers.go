package providers

import (
	"context"
	"errors"

	"github.com/lehigh-university-libraries/retoucher/internal/models"
)

var (
	// ErrEmptyResponse is returned when the model answers without an image.
	ErrEmptyResponse = errors.New("the model returned no image")
	// ErrRefused is returned when the model declines the request on safety grounds.
	ErrRefused = errors.New("the request was refused by the model's safety filter")
)

// Kind identifies which editing operation a request performs
type Kind string

const (
	KindRetouch Kind = "retouch"
	KindFilter  Kind = "filter"
	KindAdjust  Kind = "adjust"
	KindExpand  Kind = "expand"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRetouch, KindFilter, KindAdjust, KindExpand:
		return true
	}
	return false
}

// Request represents one image edit sent to a provider
type Request struct {
	Kind        Kind
	Prompt      string
	Image       []byte
	MIMEType    string
	Width       int
	Height      int
	Mask        []byte
	Region      *models.Region
	Model       string
	Temperature float64
}

// Result is the encoded image a provider returned
type Result struct {
	Data     []byte
	MIMEType string
}

// Provider defines the interface for an image editing model
type Provider interface {
	EditImage(ctx context.Context, req Request) (*Result, error)
}
