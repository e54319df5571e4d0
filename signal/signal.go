// signal/signal.go
package signal

import (
	"encoding/json"

	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/network"
)

// Sender is the send surface the relay needs.
type Sender interface {
	SendToSession(sessionID string, msgID uint16, data []byte) error
}

// Relay forwards peer-connection negotiation between connections in a
// duel. It keeps no state; it only exists because peer-to-peer video
// negotiation needs a rendezvous point.
type Relay struct {
	sender Sender
}

func NewRelay(sender Sender) *Relay {
	return &Relay{sender: sender}
}

// Forward delivers the payload verbatim to the target connection, tagged
// with the sender's session id and the duel for context.
func (r *Relay) Forward(duelID, fromSessionID, toSessionID string, payload json.RawMessage) {
	data, _ := json.Marshal(network.SignalEvent{
		DuelID:  duelID,
		From:    fromSessionID,
		Payload: payload,
	})
	if err := r.sender.SendToSession(toSessionID, network.MsgTypeSignal, data); err != nil {
		logger.Log.Debugf("Signal relay to %s failed: %v", toSessionID, err)
	}
}

// RequestStreams notifies each target, except the requester, that the
// requester wants their stream.
func (r *Relay) RequestStreams(duelID, requesterSessionID string, targetSessionIDs []string) {
	data, _ := json.Marshal(network.StreamRequestEvent{
		DuelID: duelID,
		From:   requesterSessionID,
	})
	for _, target := range targetSessionIDs {
		if target == requesterSessionID {
			continue
		}
		if err := r.sender.SendToSession(target, network.MsgTypeRequestStreams, data); err != nil {
			logger.Log.Debugf("Stream request to %s failed: %v", target, err)
		}
	}
}
