package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func color(w, h int) Attachment {
	return Attachment{Present: true, Width: w, Height: h, Format: FormatRGBA16Float}
}

func TestCheckCompleteness(t *testing.T) {
	depth := &Attachment{Present: true, Width: 4, Height: 4, Format: FormatDepth24}

	tests := []struct {
		name  string
		color []Attachment
		depth *Attachment
		want  Status
	}{
		{"two colors and depth", []Attachment{color(4, 4), color(4, 4)}, depth, StatusComplete},
		{"color only", []Attachment{color(4, 4)}, nil, StatusComplete},
		{"nothing", nil, nil, StatusMissingAttachment},
		{"deleted color", []Attachment{{}}, nil, StatusIncompleteAttachment},
		{"deleted depth", []Attachment{color(4, 4)}, &Attachment{}, StatusIncompleteAttachment},
		{"size mismatch", []Attachment{color(4, 4), color(4, 2)}, nil, StatusMismatchedSize},
		{"depth size mismatch", []Attachment{color(2, 2)}, depth, StatusMismatchedSize},
		{"depth in color slot", []Attachment{*depth}, nil, StatusUnsupported},
		{"color in depth slot", []Attachment{color(4, 4)}, &Attachment{Present: true, Width: 4, Height: 4, Format: FormatRGBA8}, StatusUnsupported},
		{"too many", make([]Attachment, MaxDrawBuffers+1), nil, StatusTooManyAttachments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckCompleteness(tt.color, tt.depth))
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "complete", StatusComplete.String())
	assert.Equal(t, "attachments differ in size", StatusMismatchedSize.String())
	assert.Equal(t, "Status(42)", Status(42).String())
	assert.Equal(t, "RGBA16F", FormatRGBA16Float.String())
}
