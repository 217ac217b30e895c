package sendq

// Draft is the canonical resolved descriptor of an outgoing message. Exactly
// one content kind dominates: body (optionally with attachments), or a
// sticker. A draft exists only in memory; nothing is persisted until it is
// enqueued.
type Draft struct {
	Body        *Body
	Attachments []AttachmentHandle
	QuotedReply *QuotedReply
	LinkPreview *LinkPreviewDraft
	Sticker     *Sticker
}

// ResolveText resolves compose shape (a): body text with an optional quoted
// reply and link-preview draft.
func ResolveText(body *Body, quote *QuotedReply, preview *LinkPreviewDraft) (Draft, error) {
	return ResolveMedia(body, nil, quote, preview)
}

// ResolveMedia resolves compose shape (b): optional body text plus media
// attachments, with an optional quoted reply and link-preview draft.
func ResolveMedia(body *Body, attachments []AttachmentHandle, quote *QuotedReply, preview *LinkPreviewDraft) (Draft, error) {
	draft := Draft{
		Body:        body,
		Attachments: attachments,
		QuotedReply: quote,
		LinkPreview: preview,
	}
	if err := draft.Validate(); err != nil {
		return Draft{}, err
	}

	return draft, nil
}

// ResolveInstalledSticker resolves compose shape (c) for a sticker from an
// installed pack.
func ResolveInstalledSticker(ref StickerRef) (Draft, error) {
	if ref.PackID == "" {
		return Draft{}, ErrStickerMetadata
	}
	draft := Draft{Sticker: &Sticker{Installed: &ref}}
	if err := draft.Validate(); err != nil {
		return Draft{}, err
	}

	return draft, nil
}

// ResolveStickerPayload resolves compose shape (c) for a sticker whose pack is
// not installed, carrying the raw bytes alongside their metadata.
func ResolveStickerPayload(meta StickerMetadata, data []byte) (Draft, error) {
	if meta.PackID == "" || meta.ContentType == "" {
		return Draft{}, ErrStickerMetadata
	}
	if len(data) == 0 || meta.ByteLength != len(data) {
		return Draft{}, ErrStickerData
	}
	draft := Draft{Sticker: &Sticker{Metadata: &meta, Data: data}}
	if err := draft.Validate(); err != nil {
		return Draft{}, err
	}

	return draft, nil
}

// Validate checks the draft's structural invariants.
func (d Draft) Validate() error {
	hasBody := !d.Body.IsEmpty()
	hasAttachments := len(d.Attachments) > 0
	hasSticker := d.Sticker != nil

	if !hasBody && !hasAttachments && !hasSticker {
		return ErrEmptyDraft
	}
	if hasSticker && (hasBody || hasAttachments) {
		return ErrContentConflict
	}
	if hasSticker {
		if err := d.Sticker.validate(); err != nil {
			return err
		}
	}
	for _, h := range d.Attachments {
		if err := h.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Sticker) validate() error {
	installed := s.Installed != nil
	payload := s.Metadata != nil || len(s.Data) > 0
	if installed == payload {
		return ErrContentConflict
	}
	if installed {
		if s.Installed.PackID == "" {
			return ErrStickerMetadata
		}

		return nil
	}
	if s.Metadata == nil || s.Metadata.PackID == "" || s.Metadata.ContentType == "" {
		return ErrStickerMetadata
	}
	if len(s.Data) == 0 || s.Metadata.ByteLength != len(s.Data) {
		return ErrStickerData
	}

	return nil
}
