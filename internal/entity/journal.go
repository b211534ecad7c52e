package entity

import "encoding/json"

const (
	ActionStartHandshake    = "start_handshake"
	ActionCompleteHandshake = "complete_handshake"
	ActionCurrentMove       = "current_move"
	ActionBoard             = "board"
	ActionPlacePiece        = "place_piece"
	ActionNewGame           = "new_game"
	ActionSetTrashTalk      = "set_trash_talk"
	ActionGetTrashTalk      = "get_trash_talk"
	ActionReadLog           = "read_log"
)

// LogEntry is one record of the audit trail. Data keeps the raw request so
// that big integers survive without float rounding.
type LogEntry struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}
