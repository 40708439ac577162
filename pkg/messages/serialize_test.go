package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeMessage_roundTrip(t *testing.T) {
	payload, err := json.Marshal(ClientMove{X: 100, Y: 200, Heading: 1.5})
	assert.NoError(t, err)

	original := &Message{
		PlayerID: 7,
		Type:     MessageTypeClientMove,
		Payload:  payload,
	}

	data, err := SerializeMessage(original)
	assert.NoError(t, err)

	decoded, err := DeserializeMessage(data)
	assert.NoError(t, err)
	assert.Equal(t, original.PlayerID, decoded.PlayerID)
	assert.Equal(t, original.Type, decoded.Type)

	move := ClientMove{}
	assert.NoError(t, json.Unmarshal(decoded.Payload, &move))
	assert.Equal(t, 100.0, move.X)
	assert.Equal(t, 200.0, move.Y)
	assert.Equal(t, 1.5, move.Heading)
}

func TestDeserializeMessage_garbage(t *testing.T) {
	_, err := DeserializeMessage([]byte("not a compressed message"))
	assert.Error(t, err)
}

func TestNewServerMessage(t *testing.T) {
	message, err := NewServerMessage(MessageTypeServerMatchEnded, &ServerMatchEnded{
		Reason: EndReasonElimination,
		Scoreboard: []ScoreboardEntry{
			{PlayerID: 1, Username: "player-1", Kills: 2},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, ServerPlayerID, message.PlayerID)
	assert.Equal(t, MessageTypeServerMatchEnded, message.Type)

	ended := &ServerMatchEnded{}
	assert.NoError(t, json.Unmarshal(message.Payload, ended))
	assert.Equal(t, EndReasonElimination, ended.Reason)
	assert.Equal(t, 2, ended.Scoreboard[0].Kills)
}
