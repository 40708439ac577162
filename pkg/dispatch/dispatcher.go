package dispatch

import (
	"fmt"
	"sync"

	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/messages"
)

// Broadcaster is the transport layer the dispatcher hands serialized
// messages to.
type Broadcaster interface {
	Broadcast(roomCode string, data []byte)
	Send(playerID int64, data []byte) error
}

// Dispatcher serializes server messages and fans them out through the
// transport. Messages published to the same room go out in publish
// order; messages to different rooms never block each other.
type Dispatcher struct {
	broadcaster Broadcaster
	mu          sync.Mutex
	roomLocks   map[string]*sync.Mutex
}

func NewDispatcher(broadcaster Broadcaster) *Dispatcher {
	return &Dispatcher{
		broadcaster: broadcaster,
		roomLocks:   make(map[string]*sync.Mutex),
	}
}

// Publish sends a message to every connection in a room.
func (d *Dispatcher) Publish(roomCode string, messageType string, payload interface{}) error {
	data, err := serialize(messageType, payload)
	if err != nil {
		return err
	}

	lock := d.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()
	d.broadcaster.Broadcast(roomCode, data)
	return nil
}

// PublishTo sends a message to a single player's connection.
func (d *Dispatcher) PublishTo(playerID int64, messageType string, payload interface{}) error {
	data, err := serialize(messageType, payload)
	if err != nil {
		return err
	}
	return d.broadcaster.Send(playerID, data)
}

// SendError sends an error message to a single player's connection.
// Delivery is best effort; a player without a live connection just
// misses the error.
func (d *Dispatcher) SendError(playerID int64, kind string, message string) {
	err := d.PublishTo(playerID, messages.MessageTypeServerError, &messages.ServerError{
		Kind:    kind,
		Message: message,
	})
	if err != nil {
		log.Debug("Failed to send %s error to player %d: %v", kind, playerID, err)
	}
}

func (d *Dispatcher) roomLock(roomCode string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.roomLocks[roomCode]
	if !ok {
		lock = &sync.Mutex{}
		d.roomLocks[roomCode] = lock
	}
	return lock
}

// ReleaseRoom drops the per-room ordering lock once a room is gone.
func (d *Dispatcher) ReleaseRoom(roomCode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.roomLocks, roomCode)
}

func serialize(messageType string, payload interface{}) ([]byte, error) {
	message, err := messages.NewServerMessage(messageType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %v", err)
	}
	data, err := messages.SerializeMessage(message)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}
	return data, nil
}
