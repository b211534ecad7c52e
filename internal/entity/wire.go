package entity

import (
	"encoding/json"
	"math/big"
)

type StartHandshakeRequest struct {
	Username string `json:"username"`
}

type StartHandshakeResponse struct {
	P  *big.Int `json:"p"`
	G  *big.Int `json:"g"`
	GA *big.Int `json:"ga"`
	I  int64    `json:"i"`
}

type CompleteHandshakeRequest struct {
	Username string   `json:"username"`
	GB       *big.Int `json:"gb"`
	I        int64    `json:"i"`

	Payload json.RawMessage `json:"-"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type CurrentMoveResponse struct {
	CurrentPlayer string `json:"current_player"`
}

type BoardResponse struct {
	Board     Board   `json:"board"`
	GameStart float64 `json:"game_start"`
}

// EncryptedRequest is the sealed envelope. Username only selects the key.
type EncryptedRequest struct {
	Username      string `json:"username"`
	EncryptedData string `json:"encrypted_data"`

	// Payload is the body as received, kept for the journal.
	Payload json.RawMessage `json:"-"`
}

// MovePayload is the plaintext inside an EncryptedRequest for place_piece.
type MovePayload struct {
	Password string `json:"password"`
	X        *int   `json:"x"`
	Y        *int   `json:"y"`
}

type PlacePieceResponse struct {
	Message string `json:"message"`
	Board   *Board `json:"board,omitempty"`
	Won     *bool  `json:"won,omitempty"`
	Tie     bool   `json:"tie,omitempty"`
	Flag    string `json:"flag,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
	Board   *Board `json:"board,omitempty"`
}

type TrashTalkRequest struct {
	Message string `json:"message"`

	Payload json.RawMessage `json:"-"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Error   bool   `json:"error"`
}
