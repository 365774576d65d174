package game

import "errors"

var ErrRoomNotFound = errors.New("room not found")
var ErrRoomStarted = errors.New("room already started")
var ErrNameRequired = errors.New("name is required")
var ErrUnknownTopic = errors.New("unknown topic")
var ErrNotHost = errors.New("only the host may do this")
var ErrWrongStatus = errors.New("room is not in the right status")
var ErrNoSlotChosen = errors.New("no slot chosen")
var ErrSlotTaken = errors.New("slot already filled")
var ErrAlreadyPlaced = errors.New("item already placed")
