package transport

import "context"

// ChatTarget identifies the destination chat (and optional forum topic).
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// Messenger is the outbound port to the remote messaging endpoint.
//
// Every method returns the remote message identifier(s) produced, or an
// error. Errors are expected to be handled at the delivery-worker boundary;
// nothing here retries.
type Messenger interface {
	// SendMediaGroup sends up to the endpoint's album limit of images as one
	// grouped message. captionHTML, if non-empty, is attached to the first
	// image only. Returns the message ids of the group in emission order.
	SendMediaGroup(ctx context.Context, imagePaths []string, captionHTML string) ([]int, error)

	// SendDocument sends a single file as a document attachment.
	SendDocument(ctx context.Context, path string, captionHTML string) (int, error)

	// SendText sends a plain HTML-formatted text message. Bodies over the
	// endpoint limit are truncated with an explicit marker.
	SendText(ctx context.Context, text string) (int, error)

	// DeleteMessage removes a previously sent message by id.
	DeleteMessage(ctx context.Context, messageID int) error
}
