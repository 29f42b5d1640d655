package livechat

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Uploader stores a file and returns a durable URL for it.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (*UploadResult, error)
}

// UploadResult describes an uploaded attachment.
type UploadResult struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	Size     int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
}

// SendMessage hands a message to the transport and returns the envelope that
// was written. Persistence is confirmed later by the inbound MessageEvent.
// It fails immediately with ErrorNotConnected when offline.
func (c *Client) SendMessage(ctx context.Context, roomID, content string, typ MessageType, metadata map[string]any) (*OutgoingMessage, error) {
	if !c.Connected() {
		return nil, NewError(ErrorNotConnected, "cannot send message while disconnected")
	}
	if roomID == "" {
		return nil, NewError(ErrorBadRequest, "empty room id")
	}
	if typ == "" {
		typ = MessageText
	}
	user := c.identity()
	msg := &OutgoingMessage{
		ClientID:   uuid.NewString(),
		RoomID:     roomID,
		SenderID:   user.ID,
		SenderName: user.Name,
		Content:    content,
		Type:       typ,
		Metadata:   metadata,
		Timestamp:  c.clock.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := c.emit(ctx, emitSendMessage, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// SendFile uploads r and sends a message referencing it. Images are sent as
// MessageImage, everything else as MessageFile.
func (c *Client) SendFile(ctx context.Context, roomID, name, contentType string, r io.Reader) (*OutgoingMessage, error) {
	if !c.Connected() {
		return nil, NewError(ErrorNotConnected, "cannot upload file while disconnected")
	}
	if c.uploader == nil {
		return nil, NewError(ErrorInvalidConfig, "no uploader configured")
	}
	res, err := c.uploader.Upload(ctx, name, contentType, r)
	if err != nil {
		return nil, WrapError(ErrorUploadFailed, "upload "+name, err)
	}
	mime := res.MimeType
	if mime == "" {
		mime = contentType
	}
	fileName := res.FileName
	if fileName == "" {
		fileName = name
	}
	typ := MessageFile
	if strings.HasPrefix(mime, "image/") {
		typ = MessageImage
	}
	return c.SendMessage(ctx, roomID, fileName, typ, map[string]any{
		"url":      res.URL,
		"fileName": fileName,
		"fileSize": res.Size,
		"mimeType": mime,
	})
}

// MarkMessageAsRead acknowledges a message. Read receipts are best-effort:
// nothing is sent and no error is reported while offline.
func (c *Client) MarkMessageAsRead(ctx context.Context, messageID, roomID string) {
	user := c.identity()
	c.emitBestEffort(ctx, emitMessageRead, readPayload{
		MessageID: messageID,
		RoomID:    roomID,
		UserID:    user.ID,
		ReadAt:    c.clock.Now().UTC(),
	})
}

// MarkRoomAsRead acknowledges every message in a room, best-effort.
func (c *Client) MarkRoomAsRead(ctx context.Context, roomID string) {
	user := c.identity()
	c.emitBestEffort(ctx, emitRoomRead, roomReadPayload{
		RoomID: roomID,
		UserID: user.ID,
		ReadAt: c.clock.Now().UTC(),
	})
}
