package domain

import "time"

// ReplyDraft is a generated reply awaiting acceptance.
type ReplyDraft struct {
	EmailID        int64  `json:"email_id"`
	TemplateKey    string `json:"template_key"`
	Author         string `json:"author"`
	Content        string `json:"content"`
	Confidence     int    `json:"confidence"`
	Nominal        int    `json:"nominal_confidence"`
	MeetsThreshold bool   `json:"meets_threshold"`
	DurationMS     int64  `json:"duration_ms"`
}

// AISettings are the operator-tunable reply assistant settings.
type AISettings struct {
	AutoReply           bool `json:"auto_reply"`
	ConfidenceThreshold int  `json:"confidence_threshold"`
}

// SendReplyRequest carries an accepted draft.
type SendReplyRequest struct {
	Content    string `json:"content"`
	Confidence int    `json:"confidence"`
	Author     string `json:"author,omitempty"`
}

// SendReplyResult describes what happened when a reply was accepted.
type SendReplyResult struct {
	Email        *Email    `json:"email"`
	ProviderSent bool      `json:"provider_sent"`
	ProviderID   string    `json:"provider_id,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}
