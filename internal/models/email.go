package models

import "time"

// InboundEmail is the canonical shape of a webhook delivery after
// normalization. It only lives for the duration of one request.
type InboundEmail struct {
	MessageID   string          `json:"message_id,omitempty"`
	InReplyTo   string          `json:"in_reply_to,omitempty"`
	References  []string        `json:"references,omitempty"`
	Subject     string          `json:"subject"`
	FromEmail   string          `json:"from_email"`
	FromName    string          `json:"from_name,omitempty"`
	BodyText    string          `json:"body"`
	BodyHTML    string          `json:"html_body,omitempty"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	ReceivedAt  *time.Time      `json:"received_at,omitempty"`

	// RawPayload keeps the original provider payload for ticket metadata
	// and manual replay of misfiled messages.
	RawPayload map[string]any `json:"-"`
}

// AttachmentRef points at attachment content that still has to be resolved.
// Either the content is inline (base64) or it must be fetched from the mail
// provider using the owning message id.
type AttachmentRef struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content,omitempty"`
	Mime          string `json:"mime,omitempty"`
	RemotePath    string `json:"remote_path,omitempty"`
	Inline        bool   `json:"inline,omitempty"`
}

// IsInline reports whether the ref already carries its bytes.
func (r AttachmentRef) IsInline() bool {
	return r.ContentBase64 != ""
}

// StoredAttachment is the immutable record of a persisted attachment kept on
// the owning ticket or reply.
type StoredAttachment struct {
	Filename    string `json:"filename"`
	StoredName  string `json:"stored_name"`
	StoragePath string `json:"storage_path"`
	Mime        string `json:"mime"`
	SizeBytes   int64  `json:"size_bytes"`
	Inline      bool   `json:"inline,omitempty"`
}
