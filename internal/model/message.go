package model

import "github.com/google/uuid"

// Kind is the media type carried by a relay message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// RelayMessage is an inbound message handed over by the ingest side.
// Media is base64 in JSON.
type RelayMessage struct {
	ID      uuid.UUID `json:"id"`
	GroupID int64     `json:"group_id"`
	Kind    Kind      `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Caption string    `json:"caption,omitempty"`
	Media   []byte    `json:"media,omitempty"`
}

// RelayResult is published for the delivery side after processing.
// Processed reports the text or media outcome, CaptionProcessed the caption.
type RelayResult struct {
	ID               uuid.UUID `json:"id"`
	GroupID          int64     `json:"group_id"`
	Kind             Kind      `json:"kind"`
	Text             string    `json:"text,omitempty"`
	Caption          string    `json:"caption,omitempty"`
	Media            []byte    `json:"media,omitempty"`
	Processed        bool      `json:"processed"`
	CaptionProcessed bool      `json:"caption_processed"`
}
