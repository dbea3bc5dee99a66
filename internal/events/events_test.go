package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"bridge-backend/internal/bridge"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewEnvelopeTransferID(t *testing.T) {
	env := NewEnvelope(bridge.TransferCancelled{ID: 9, Refund: uint256.NewInt(5)})
	require.NotNil(t, env.TransferID)
	assert.Equal(t, uint64(9), *env.TransferID)
	assert.Equal(t, "TransferCancelled", env.Name)
	assert.Len(t, env.ID, 36)

	env = NewEnvelope(bridge.Paused{Paused: true})
	assert.Nil(t, env.TransferID)
}

func TestBusDeliversInOrderAndSurvivesPanics(t *testing.T) {
	bus := NewBus(quietLogger())
	var got []string
	bus.Subscribe("first", SubscriberFunc(func(_ context.Context, env *Envelope) {
		got = append(got, "first:"+env.Name)
	}))
	bus.Subscribe("broken", SubscriberFunc(func(context.Context, *Envelope) {
		panic("boom")
	}))
	bus.Subscribe("last", SubscriberFunc(func(_ context.Context, env *Envelope) {
		got = append(got, "last:"+env.Name)
	}))

	bus.Emit(context.Background(), bridge.FeeUpdated{SourceChain: 1, DestinationChain: 2})
	assert.Equal(t, []string{"first:FeeUpdated", "last:FeeUpdated"}, got)
}

func TestNATSPublisherHandle(t *testing.T) {
	var published []*nats.Msg
	p := &NATSPublisher{
		prefix: "bridge.events",
		logger: quietLogger(),
		publish: func(msg *nats.Msg) error {
			published = append(published, msg)
			return nil
		},
	}

	env := NewEnvelope(bridge.TransferConfirmed{
		ID:            4,
		Validator:     common.HexToAddress("0x00000000000000000000000000000000000d0001"),
		Confirmations: 1,
	})
	p.Handle(context.Background(), env)

	require.Len(t, published, 1)
	msg := published[0]
	assert.Equal(t, "bridge.events.TransferConfirmed", msg.Subject)
	assert.Equal(t, env.ID, msg.Header.Get(nats.MsgIdHdr))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "TransferConfirmed", decoded["name"])
	assert.EqualValues(t, 4, decoded["transfer_id"])
	data := decoded["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["confirmations"])
}

func TestNATSPublisherSwallowsErrors(t *testing.T) {
	p := &NATSPublisher{
		prefix:  "bridge.events",
		logger:  quietLogger(),
		publish: func(*nats.Msg) error { return errors.New("nats: connection closed") },
	}
	assert.NotPanics(t, func() {
		p.Handle(context.Background(), NewEnvelope(bridge.Paused{Paused: true}))
	})
}
