// Package tictactoe holds the decision engine for the automated player.
package tictactoe

import "github.com/rocketscienceinc/tickeyhellman/internal/entity"

const (
	scoreWin  = 1
	scoreLoss = -1
	scoreTie  = 0
)

// BestMove searches the full game tree for me and returns the first move in
// row-major order with the best minimax score. ok is false when the board has
// no empty cell.
func BestMove(board entity.Board, me string) (entity.Move, bool) {
	var (
		best     entity.Move
		found    bool
		bestSeen = scoreLoss - 1
	)

	opponent := entity.Opponent(me)
	for _, move := range board.AvailableMoves() {
		next := board
		next[move.Row][move.Col] = me

		if score := minimax(next, me, opponent, false); score > bestSeen {
			best, bestSeen, found = move, score, true
		}
	}

	return best, found
}

// minimax scores board from me's point of view. Each branch works on its own
// copy of the board.
func minimax(board entity.Board, me, opponent string, maximizing bool) int {
	switch board.Winner() {
	case me:
		return scoreWin
	case opponent:
		return scoreLoss
	}

	if board.IsFull() {
		return scoreTie
	}

	mover := opponent
	best := scoreWin + 1
	if maximizing {
		mover = me
		best = scoreLoss - 1
	}

	for _, move := range board.AvailableMoves() {
		next := board
		next[move.Row][move.Col] = mover

		score := minimax(next, me, opponent, !maximizing)
		if maximizing && score > best || !maximizing && score < best {
			best = score
		}
	}

	return best
}
