package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

// ErrMalformed is returned for messages that cannot be decoded or routed.
var ErrMalformed = errors.New("malformed relay message")

// service defines the processing facade used for relay messages.
type service interface {
	ProcessText(ctx context.Context, groupID int64, text string) (string, bool)
	ProcessImage(ctx context.Context, groupID int64, data []byte) ([]byte, bool)
	ProcessVideo(ctx context.Context, groupID int64, data []byte) ([]byte, bool)
}

// publisher sends processed messages to the delivery side.
type publisher interface {
	Publish(ctx context.Context, res model.RelayResult) error
}

// Handler watermarks inbound relay messages and publishes the result.
type Handler struct {
	service   service
	publisher publisher
}

// NewHandler creates a new handler with the given service and publisher.
func NewHandler(s service, p publisher) *Handler {
	return &Handler{service: s, publisher: p}
}

// Handle processes one Kafka message. Watermarking never fails a message;
// only a malformed payload or a failed publish is reported.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var in model.RelayMessage
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	res, err := h.process(ctx, in)
	if err != nil {
		return err
	}

	if err := h.publisher.Publish(ctx, res); err != nil {
		return fmt.Errorf("handle %s: %w", in.ID, err)
	}

	zlog.Logger.Debug().
		Str("id", in.ID.String()).
		Int64("group_id", in.GroupID).
		Str("kind", string(in.Kind)).
		Bool("processed", res.Processed).
		Bool("caption_processed", res.CaptionProcessed).
		Msg("relay message processed")

	return nil
}

func (h *Handler) process(ctx context.Context, in model.RelayMessage) (model.RelayResult, error) {
	res := model.RelayResult{
		ID:      in.ID,
		GroupID: in.GroupID,
		Kind:    in.Kind,
		Text:    in.Text,
		Caption: in.Caption,
		Media:   in.Media,
	}

	switch in.Kind {
	case model.KindText:
		res.Text, res.Processed = h.service.ProcessText(ctx, in.GroupID, in.Text)
		return res, nil
	case model.KindImage:
		res.Media, res.Processed = h.service.ProcessImage(ctx, in.GroupID, in.Media)
	case model.KindVideo:
		res.Media, res.Processed = h.service.ProcessVideo(ctx, in.GroupID, in.Media)
	default:
		return model.RelayResult{}, fmt.Errorf("%w: unknown kind %q", ErrMalformed, in.Kind)
	}

	// Only captions the sender wrote carry the text signature.
	if strings.TrimSpace(in.Caption) != "" {
		res.Caption, res.CaptionProcessed = h.service.ProcessText(ctx, in.GroupID, in.Caption)
	}

	return res, nil
}
