package apperror

import (
	"errors"
	"fmt"
)

// Categories. Every error returned by the core wraps exactly one of these.
var (
	ErrProtocol       = errors.New("protocol error")
	ErrDecryption     = errors.New("decryption failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
)

var (
	ErrHandshakeNotStarted   = fmt.Errorf("%w: handshake not started", ErrProtocol)
	ErrHandshakeNotCompleted = fmt.Errorf("%w: handshake not completed", ErrProtocol)
	ErrInvalidIteration      = fmt.Errorf("%w: invalid iteration", ErrProtocol)
	ErrInvalidPublicValue    = fmt.Errorf("%w: invalid public value", ErrProtocol)

	ErrInvalidCell  = fmt.Errorf("%w: invalid move", ErrValidation)
	ErrCellOccupied = fmt.Errorf("%w: cell already occupied", ErrValidation)
	ErrNotYourTurn  = fmt.Errorf("%w: it's not your turn", ErrValidation)

	ErrUnknownUser = fmt.Errorf("%w: unknown user", ErrAuthentication)
)

// TurnError is returned when an identity tries to place a mark it is not allowed to play.
type TurnError struct {
	Mark string
}

func (that *TurnError) Error() string {
	return fmt.Sprintf("only the %s can play as %s", that.Role(), that.Mark)
}

func (that *TurnError) Unwrap() error {
	return ErrNotYourTurn
}

// Role names the identity that owns Mark.
func (that *TurnError) Role() string {
	if that.Mark == "O" {
		return "bot"
	}
	return "player"
}
