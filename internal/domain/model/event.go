package model

import "time"

type InboundEvent struct {
	EventID       string
	ActorID       string
	DisplayName   string
	Text          string
	HasAttachment bool
	Attachment    *Attachment
	ReceivedAt    time.Time
}

type Attachment struct {
	FileID   string
	FileName string
}

type OutboundMessage struct {
	ActorID string
	Text    string
}
