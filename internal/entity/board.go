package entity

const (
	PlayerX   = "X"
	PlayerO   = "O"
	EmptyCell = " "

	BoardSize = 3
)

// Move is a zero-based (row, column) coordinate.
type Move struct {
	Row int `json:"x"`
	Col int `json:"y"`
}

// WinLines are the 3 rows, 3 columns and 2 diagonals.
var WinLines = [8][3]Move{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Board is a value type: assigning it copies every cell.
type Board [BoardSize][BoardSize]string

func NewBoard() Board {
	var board Board
	for row := range board {
		for col := range board[row] {
			board[row][col] = EmptyCell
		}
	}

	return board
}

func InBounds(row, col int) bool {
	return row >= 0 && row < BoardSize && col >= 0 && col < BoardSize
}

// Winner returns the mark holding a full line, or "" if there is none.
func (that Board) Winner() string {
	for _, line := range WinLines {
		a := that[line[0].Row][line[0].Col]
		b := that[line[1].Row][line[1].Col]
		c := that[line[2].Row][line[2].Col]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	return ""
}

func (that Board) IsFull() bool {
	return that.MoveCount() == BoardSize*BoardSize
}

func (that Board) MoveCount() int {
	count := 0
	for _, row := range that {
		for _, cell := range row {
			if cell != EmptyCell {
				count++
			}
		}
	}

	return count
}

// AvailableMoves lists empty cells in row-major order.
func (that Board) AvailableMoves() []Move {
	moves := make([]Move, 0, BoardSize*BoardSize)
	for row := range that {
		for col := range that[row] {
			if that[row][col] == EmptyCell {
				moves = append(moves, Move{Row: row, Col: col})
			}
		}
	}

	return moves
}

func Opponent(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
