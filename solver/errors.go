package solver

import "errors"

var (
	ErrUnknownTraveler = errors.New("traveler not in this partition")
	ErrUnknownRoom     = errors.New("room not found")
	ErrNotInRoom       = errors.New("traveler is not in the source room")
	ErrAlreadyInRoom   = errors.New("traveler already in destination room")
	ErrRoomFull        = errors.New("destination room is full")
	ErrInvalidState    = errors.New("invalid assignment state")
)
