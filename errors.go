package sendq

import (
	"errors"
	"fmt"
)

// ErrResolution classifies compose-time failures: the input was structurally
// invalid and no storage was touched. Match with errors.Is.
var ErrResolution = errors.New("sendq: invalid compose input")

// ErrCreation classifies write-time failures: the enclosing transaction rolls
// back and no message record survives. Match with errors.Is.
var ErrCreation = errors.New("sendq: message creation failed")

var (
	// ErrEmptyDraft is returned when a draft carries no body, attachments or sticker.
	ErrEmptyDraft = fmt.Errorf("%w: draft has no content", ErrResolution)
	// ErrContentConflict is returned when a sticker is combined with body or attachments.
	ErrContentConflict = fmt.Errorf("%w: sticker and body content are mutually exclusive", ErrResolution)
	// ErrStickerMetadata is returned when sticker metadata is incomplete.
	ErrStickerMetadata = fmt.Errorf("%w: sticker metadata is incomplete", ErrResolution)
	// ErrStickerData is returned when sticker bytes are missing or do not match
	// the declared byte length.
	ErrStickerData = fmt.Errorf("%w: sticker data does not match metadata", ErrResolution)
	// ErrAttachmentHandle is returned when an attachment handle fails local validation.
	ErrAttachmentHandle = fmt.Errorf("%w: attachment handle is invalid", ErrResolution)

	// ErrThreadNotFound is returned when the destination thread does not exist.
	ErrThreadNotFound = fmt.Errorf("%w: thread not found", ErrCreation)
	// ErrThreadClosed is returned when the thread forbids new messages.
	ErrThreadClosed = fmt.Errorf("%w: thread is pending deletion", ErrCreation)
	// ErrAttachmentInvalid is returned when an attachment reference fails
	// validation at persistence time.
	ErrAttachmentInvalid = fmt.Errorf("%w: attachment is invalid", ErrCreation)

	// ErrMessageNotFound signals that a message ID no longer resolves.
	ErrMessageNotFound = errors.New("sendq: message not found")
	// ErrWriteScopeRequired is returned when an operation needs a write scope
	// and none was supplied.
	ErrWriteScopeRequired = errors.New("sendq: write scope is required")
	// ErrInvalidBatchSize indicates that the requested claim size is not positive.
	ErrInvalidBatchSize = errors.New("sendq: batch size must be positive")
	// ErrNoMessages signals that no pending messages are available to claim.
	ErrNoMessages = errors.New("sendq: no pending messages")
	// ErrWorkerPanic indicates a scheduler worker panic.
	ErrWorkerPanic = errors.New("sendq: worker panic")
)
