package sendq

import (
	"os"

	"github.com/google/uuid"
)

// Body is rich message text with embedded mention and style ranges.
type Body struct {
	Text   string      `json:"text"`
	Ranges []BodyRange `json:"ranges,omitempty"`
}

// RangeKind distinguishes mention ranges from style ranges.
type RangeKind int8

const (
	// RangeMention marks a range that refers to a member address.
	RangeMention RangeKind = iota
	// RangeStyle marks a presentation range (bold, italic, ...).
	RangeStyle
)

// BodyRange annotates a half-open [Start, Start+Length) rune span of the body text.
type BodyRange struct {
	Start   int       `json:"start"`
	Length  int       `json:"length"`
	Kind    RangeKind `json:"kind"`
	Mention string    `json:"mention,omitempty"`
	Style   string    `json:"style,omitempty"`
}

// IsEmpty reports whether the body carries no text.
func (b *Body) IsEmpty() bool {
	return b == nil || b.Text == ""
}

// QuotedReply points at an existing message being replied to.
type QuotedReply struct {
	MessageID uuid.UUID `json:"message_id"`
	Author    string    `json:"author"`
	Excerpt   string    `json:"excerpt,omitempty"`
}

// LinkPreviewDraft is unconfirmed preview metadata for a link in the body,
// pending fetch confirmation.
type LinkPreviewDraft struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// StickerRef identifies a sticker from an installed pack.
type StickerRef struct {
	PackID    string `json:"pack_id"`
	StickerID uint32 `json:"sticker_id"`
	Emoji     string `json:"emoji,omitempty"`
}

// StickerMetadata describes a sticker whose pack is not installed locally, so
// its bytes travel with the message.
type StickerMetadata struct {
	PackID      string `json:"pack_id"`
	StickerID   uint32 `json:"sticker_id"`
	Emoji       string `json:"emoji,omitempty"`
	ContentType string `json:"content_type"`
	ByteLength  int    `json:"byte_length"`
}

// Sticker is the resolved sticker content of a draft: an installed reference,
// or metadata plus raw bytes for an uninstalled sticker.
type Sticker struct {
	Installed *StickerRef      `json:"installed,omitempty"`
	Metadata  *StickerMetadata `json:"metadata,omitempty"`
	Data      []byte           `json:"data,omitempty"`
}

// AttachmentHandle is a compose-time reference to attachment content. Exactly
// one of Path and Data must be set.
type AttachmentHandle struct {
	FileName    string
	ContentType string
	Path        string
	Data        []byte
}

// Validate performs local structural checks: a content type, exactly one
// content source, and a readable file for path-backed handles.
func (h AttachmentHandle) Validate() error {
	if h.ContentType == "" {
		return ErrAttachmentHandle
	}
	hasPath := h.Path != ""
	hasData := len(h.Data) > 0
	if hasPath == hasData {
		return ErrAttachmentHandle
	}
	if hasPath {
		info, err := os.Stat(h.Path)
		if err != nil || info.IsDir() {
			return ErrAttachmentHandle
		}
	}

	return nil
}

// Attachment is a persisted attachment reference, exclusively owned by one message.
type Attachment struct {
	ID          uuid.UUID
	MessageID   uuid.UUID
	FileName    string
	ContentType string
	Size        int64
	Data        []byte
}
