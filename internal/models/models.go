package models

import (
	"bytes"
	"io"
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable, fully rendered image produced by an upload or by
// one committed editing operation.
type Snapshot struct {
	id       string
	name     string
	mimeType string
	width    int
	height   int
	data     []byte
}

// NewSnapshot copies data into a new Snapshot. Callers are expected to have
// validated that data decodes to an image of the given size.
func NewSnapshot(name, mimeType string, width, height int, data []byte) *Snapshot {
	return &Snapshot{
		id:       uuid.NewString(),
		name:     name,
		mimeType: mimeType,
		width:    width,
		height:   height,
		data:     bytes.Clone(data),
	}
}

func (s *Snapshot) ID() string       { return s.id }
func (s *Snapshot) Name() string     { return s.name }
func (s *Snapshot) MIMEType() string { return s.mimeType }
func (s *Snapshot) Width() int       { return s.width }
func (s *Snapshot) Height() int      { return s.height }
func (s *Snapshot) Size() int        { return len(s.data) }

// Bytes returns a copy of the encoded image.
func (s *Snapshot) Bytes() []byte {
	return bytes.Clone(s.data)
}

// Reader streams the encoded image without copying it.
func (s *Snapshot) Reader() io.Reader {
	return bytes.NewReader(s.data)
}

// BatchStatus is the lifecycle state of a BatchItem.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchDone       BatchStatus = "done"
	BatchError      BatchStatus = "error"
)

// BatchItem is one independent unit of work in a batch run.
type BatchItem struct {
	ID           string      `json:"id"`
	Source       *Snapshot   `json:"-"`
	Status       BatchStatus `json:"status"`
	Result       *Snapshot   `json:"-"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Region is a rectangle in native image pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SessionImage is one persisted history entry.
type SessionImage struct {
	Name         string `json:"name"`
	EncodedBytes []byte `json:"encodedBytes"`
}

// SessionRecord is the persisted form of an editing session.
type SessionRecord struct {
	Images      []SessionImage `json:"images"`
	CursorIndex int            `json:"cursorIndex"`
	SavedAt     time.Time      `json:"savedAt"`
}
