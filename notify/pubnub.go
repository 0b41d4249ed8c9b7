package notify

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"fila-zero/models"
)

// PubNubPublisher bridges the hub to PubNub: it subscribes as a global sink
// and forwards every event to the establishment's realtime channel, where
// browser clients listen. Delivery failures are logged and never propagate
// back to the engine.
type PubNubPublisher struct {
	pn  *pubnub.PubNub
	hub *Hub
}

func NewPubNubPublisher(pn *pubnub.PubNub, hub *Hub) *PubNubPublisher {
	return &PubNubPublisher{pn: pn, hub: hub}
}

// ChannelFor returns the realtime channel clients join for one establishment.
func ChannelFor(establishmentID string) string {
	return fmt.Sprintf("queue-%s", establishmentID)
}

// Run forwards hub events until the context is cancelled or the hub closes.
// Meant to be started as a goroutine from the composition root.
func (p *PubNubPublisher) Run(ctx context.Context) {
	sub := p.hub.SubscribeAll()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			p.forward(event)
		case <-ctx.Done():
			p.hub.Unsubscribe(sub)
			return
		}
	}
}

func (p *PubNubPublisher) forward(event models.Event) {
	channel := ChannelFor(event.EstablishmentID)

	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(map[string]any{
			"type":            string(event.Kind),
			"establishmentId": event.EstablishmentID,
			"payload":         event.Payload,
		}).
		Execute()
	if err != nil {
		slog.Warn("pubnub publish failed",
			"channel", channel,
			"kind", event.Kind,
			"error", err,
		)
	}
}
