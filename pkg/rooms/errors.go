package rooms

import (
	"fmt"

	"github.com/jdavenport/lockstep/pkg/repositories/models"
)

type ErrInvalidState struct {
	Status models.RoomStatus
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("room is %s", e.Status)
}

func IsInvalidState(err error) bool {
	_, ok := err.(*ErrInvalidState)
	return ok
}

type ErrRoomFull struct {
}

func (e *ErrRoomFull) Error() string {
	return "room is full"
}

func IsRoomFull(err error) bool {
	_, ok := err.(*ErrRoomFull)
	return ok
}

type ErrRoomNotFound struct {
}

func (e *ErrRoomNotFound) Error() string {
	return "room not found"
}

func IsRoomNotFound(err error) bool {
	_, ok := err.(*ErrRoomNotFound)
	return ok
}

type ErrNotAMember struct {
}

func (e *ErrNotAMember) Error() string {
	return "player is not a member of the room"
}

func IsNotAMember(err error) bool {
	_, ok := err.(*ErrNotAMember)
	return ok
}

type ErrNotEnoughPlayers struct {
}

func (e *ErrNotEnoughPlayers) Error() string {
	return "not enough players to start"
}

func IsNotEnoughPlayers(err error) bool {
	_, ok := err.(*ErrNotEnoughPlayers)
	return ok
}

type ErrNotAllReady struct {
}

func (e *ErrNotAllReady) Error() string {
	return "not all players are ready"
}

func IsNotAllReady(err error) bool {
	_, ok := err.(*ErrNotAllReady)
	return ok
}

type ErrNotOwner struct {
}

func (e *ErrNotOwner) Error() string {
	return "only the room owner can do that"
}

func IsNotOwner(err error) bool {
	_, ok := err.(*ErrNotOwner)
	return ok
}

// ErrorKind maps a room error to the kind string carried by error
// messages on the wire.
func ErrorKind(err error) string {
	switch err.(type) {
	case *ErrInvalidState:
		return "InvalidState"
	case *ErrRoomFull:
		return "RoomFull"
	case *ErrRoomNotFound:
		return "RoomNotFound"
	case *ErrNotAMember:
		return "NotAMember"
	case *ErrNotEnoughPlayers:
		return "NotEnoughPlayers"
	case *ErrNotAllReady:
		return "NotAllReady"
	case *ErrNotOwner:
		return "NotOwner"
	default:
		return "Internal"
	}
}
