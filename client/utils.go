package client

import (
	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/alfrunes/mqttie/v5/transport"
)

// maxPacketIDs is the number of distinct non-zero packet identifiers.
const maxPacketIDs = 0xFFFF

// packetIDs allocates packet identifiers by scanning cyclically from next,
// skipping 0. It is not safe for concurrent use.
type packetIDs struct {
	obtained map[uint16]struct{}
	next     uint16
}

func newPacketIDs() *packetIDs {
	return &packetIDs{
		obtained: make(map[uint16]struct{}),
		next:     1,
	}
}

func (p *packetIDs) acquire() (uint16, error) {
	if len(p.obtained) >= maxPacketIDs {
		return 0, mqtt.ErrPacketIDsExhausted
	}
	id := p.next
	for i := 0; i < maxPacketIDs; i++ {
		if id == 0 {
			id = 1
		}
		if _, held := p.obtained[id]; !held {
			p.obtained[id] = struct{}{}
			p.next = id + 1
			return id, nil
		}
		id++
	}
	return 0, mqtt.ErrPacketIDsExhausted
}

func (p *packetIDs) release(id uint16) {
	delete(p.obtained, id)
}

func (p *packetIDs) held(id uint16) bool {
	_, ok := p.obtained[id]
	return ok
}

// pendingRequest is an outstanding request awaiting its acknowledgement on
// conn. result is buffered and receives exactly one value.
type pendingRequest struct {
	result chan error
	conn   transport.Connection
	// topicFilter is set for subscribe requests.
	topicFilter string
}

func newPendingRequest(conn transport.Connection) *pendingRequest {
	return &pendingRequest{
		result: make(chan error, 1),
		conn:   conn,
	}
}

func (p *pendingRequest) resolve(err error) {
	p.result <- err
}
