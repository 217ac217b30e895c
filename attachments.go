package sendq

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileAttachments resolves file-backed and in-memory attachment handles by
// loading their bytes. It enforces an optional size cap.
type FileAttachments struct {
	// MaxBytes rejects attachments larger than this when positive.
	MaxBytes int64
}

var _ AttachmentStore = FileAttachments{}

// Resolve implements AttachmentStore.
func (f FileAttachments) Resolve(_ context.Context, h AttachmentHandle) (Attachment, error) {
	if err := h.Validate(); err != nil {
		return Attachment{}, fmt.Errorf("%w: %s", ErrAttachmentInvalid, h.FileName)
	}

	data := h.Data
	name := h.FileName
	if h.Path != "" {
		loaded, err := os.ReadFile(h.Path)
		if err != nil {
			return Attachment{}, fmt.Errorf("%w: read %s: %v", ErrAttachmentInvalid, h.Path, err)
		}
		data = loaded
		if name == "" {
			name = filepath.Base(h.Path)
		}
	}
	if len(data) == 0 {
		return Attachment{}, fmt.Errorf("%w: empty content", ErrAttachmentInvalid)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return Attachment{}, fmt.Errorf("%w: %d bytes exceeds limit", ErrAttachmentInvalid, len(data))
	}

	return Attachment{
		FileName:    name,
		ContentType: h.ContentType,
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}
