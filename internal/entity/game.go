package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/tickeyhellman/internal/apperror"
)

const (
	StatusAccepted = "accepted"
	StatusWon      = "won"
	StatusTied     = "tied"
)

// Outcome describes an accepted move. For terminal outcomes Board holds the
// finished board, captured before the round was reset.
type Outcome struct {
	Status string
	Winner string
	Board  Board
}

func (that Outcome) IsTerminal() bool {
	return that.Status == StatusWon || that.Status == StatusTied
}

type Snapshot struct {
	Board     Board
	Turn      string
	Moves     int
	StartedAt time.Time
}

// GameStart is the round identifier as float unix seconds.
func (that Snapshot) GameStart() float64 {
	return float64(that.StartedAt.UnixNano()) / float64(time.Second)
}

// Round is a single game between X and O. It is not safe for concurrent use.
type Round struct {
	board     Board
	turn      string
	moves     int
	startedAt time.Time

	clock func() time.Time
}

func NewRound(clock func() time.Time) *Round {
	if clock == nil {
		clock = time.Now
	}

	round := &Round{clock: clock}
	round.Reset()

	return round
}

// Reset clears the board and stamps a start time strictly after the previous one.
func (that *Round) Reset() {
	now := that.clock()
	if !that.startedAt.IsZero() && !now.After(that.startedAt) {
		now = that.startedAt.Add(time.Microsecond)
	}

	that.board = NewBoard()
	that.turn = PlayerX
	that.moves = 0
	that.startedAt = now
}

func (that *Round) Snapshot() Snapshot {
	return Snapshot{
		Board:     that.board,
		Turn:      that.turn,
		Moves:     that.moves,
		StartedAt: that.startedAt,
	}
}

func (that *Round) Turn() string {
	return that.turn
}

// ApplyMove validates bounds, then occupancy, then turn ownership. A rejected
// move leaves the round untouched.
func (that *Round) ApplyMove(row, col int, mark string) (Outcome, error) {
	if !InBounds(row, col) {
		return Outcome{}, fmt.Errorf("%w: (%d, %d)", apperror.ErrInvalidCell, row, col)
	}

	if that.board[row][col] != EmptyCell {
		return Outcome{}, fmt.Errorf("%w: (%d, %d)", apperror.ErrCellOccupied, row, col)
	}

	if that.turn != mark {
		return Outcome{}, &apperror.TurnError{Mark: that.turn}
	}

	that.board[row][col] = mark
	that.moves++

	if winner := that.board.Winner(); winner != "" {
		outcome := Outcome{Status: StatusWon, Winner: winner, Board: that.board}
		that.Reset()

		return outcome, nil
	}

	if that.moves == BoardSize*BoardSize {
		outcome := Outcome{Status: StatusTied, Board: that.board}
		that.Reset()

		return outcome, nil
	}

	that.turn = Opponent(mark)

	return Outcome{Status: StatusAccepted, Board: that.board}, nil
}
