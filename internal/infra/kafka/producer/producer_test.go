package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

type fakeSender struct {
	key, value []byte
	err        error
}

func (f *fakeSender) SendWithRetry(_ context.Context, _ retry.Strategy, key, value []byte) error {
	f.key, f.value = key, value
	return f.err
}

func TestPublish(t *testing.T) {
	s := &fakeSender{}
	p := &Producer{sender: s, topic: "relay.outbound"}

	res := model.RelayResult{
		ID:               uuid.New(),
		GroupID:          -100,
		Kind:             model.KindImage,
		Caption:          "hi\n\n@channel",
		Media:            []byte{0xff, 0xd8},
		Processed:        true,
		CaptionProcessed: true,
	}

	require.NoError(t, p.Publish(context.Background(), res))
	assert.Equal(t, []byte(res.ID.String()), s.key)

	var got model.RelayResult
	require.NoError(t, json.Unmarshal(s.value, &got))
	assert.Equal(t, res, got)
	assert.Contains(t, string(s.value), `"caption_processed":true`)
}

func TestPublishError(t *testing.T) {
	sendErr := errors.New("broker down")
	p := &Producer{sender: &fakeSender{err: sendErr}, topic: "relay.outbound"}

	err := p.Publish(context.Background(), model.RelayResult{ID: uuid.New()})
	require.ErrorIs(t, err, sendErr)
	assert.Contains(t, err.Error(), "relay.outbound")
}
