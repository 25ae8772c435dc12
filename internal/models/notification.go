package models

// EmailAttachment is a file sent along with an email. Content is base64 encoded on the wire.
type EmailAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// EmailPayload is the message handed to the mail queue.
type EmailPayload struct {
	Event       EventType         `json:"event"`
	To          []string          `json:"to"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Attachments []EmailAttachment `json:"attachments,omitempty"`
}
