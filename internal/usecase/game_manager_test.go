package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tickeyhellman/internal/apperror"
	"github.com/rocketscienceinc/tickeyhellman/internal/dhke"
	"github.com/rocketscienceinc/tickeyhellman/internal/entity"
	"github.com/rocketscienceinc/tickeyhellman/internal/repository"
	"github.com/rocketscienceinc/tickeyhellman/internal/securechannel"
)

const (
	playerName     = "player"
	playerPassword = "i_luv_t0_win"
	botName        = "mahaloz"
	botPassword    = "b0t-pa55"
)

var (
	errJournalDown = errors.New("journal down")
	errStorageDown = errors.New("storage down")
)

// brokenSecrets saves secrets but cannot read them back.
type brokenSecrets struct {
	dhke.SecretStore
}

func (brokenSecrets) Get(context.Context, string) (*big.Int, error) {
	return nil, errStorageDown
}

type mockJournal struct {
	mock.Mock
}

func (that *mockJournal) Append(ctx context.Context, entry entity.LogEntry) error {
	return that.Called(ctx, entry).Error(0)
}

func (that *mockJournal) List(ctx context.Context) ([]entity.LogEntry, error) {
	args := that.Called(ctx)
	return args.Get(0).([]entity.LogEntry), args.Error(1)
}

type fixture struct {
	manager *GameManager
	journal journalRepo
	metrics *Metrics
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	return newFixtureWith(t, repository.NewMemorySecretRepository(), repository.NewMemoryJournalRepository(), opts...)
}

func newFixtureWith(t *testing.T, secrets dhke.SecretStore, journal journalRepo, opts ...Option) *fixture {
	t.Helper()

	params, err := dhke.GenerateParameters(nil, 64)
	require.NoError(t, err)

	metrics := NewMetrics(prometheus.NewRegistry())
	players := repository.NewPlayerRepository(
		&entity.Player{Username: playerName, Password: playerPassword, Mark: entity.PlayerX},
		&entity.Player{Username: botName, Password: botPassword, Mark: entity.PlayerO, Bot: true},
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exchange := dhke.NewExchange(params, secrets)
	opts = append([]Option{WithMetrics(metrics), WithFlagPath(filepath.Join(t.TempDir(), "missing"))}, opts...)

	return &fixture{
		manager: NewGameManager(logger, exchange, players, journal, opts...),
		journal: journal,
		metrics: metrics,
	}
}

// handshake runs a full exchange for username and returns the shared secret.
func (that *fixture) handshake(t *testing.T, username string) []byte {
	t.Helper()
	ctx := context.Background()

	resp, err := that.manager.StartHandshake(ctx, entity.StartHandshakeRequest{Username: username})
	require.NoError(t, err)

	peer, err := dhke.ContinueHandshake(nil, dhke.Handshake{P: resp.P, G: resp.G, GA: resp.GA, I: resp.I}, nil)
	require.NoError(t, err)

	require.NoError(t, that.manager.CompleteHandshake(ctx, entity.CompleteHandshakeRequest{
		Username: username,
		GB:       peer.GB,
		I:        resp.I,
	}))

	return (&dhke.Parameters{P: resp.P}).SecretBytes(peer.Secret)
}

func (that *fixture) place(t *testing.T, username, password string, secret []byte, x, y int) (entity.PlacePieceResponse, error) {
	t.Helper()

	envelope, err := securechannel.Seal(entity.MovePayload{Password: password, X: &x, Y: &y}, username, secret)
	require.NoError(t, err)

	return that.manager.PlacePiece(context.Background(), envelope)
}

// playRound alternates X and O over cells, starting with X, and returns the
// reply to the last move.
func (that *fixture) playRound(t *testing.T, cells ...[2]int) entity.PlacePieceResponse {
	t.Helper()

	playerSecret := that.handshake(t, playerName)
	botSecret := that.handshake(t, botName)

	var resp entity.PlacePieceResponse
	for n, cell := range cells {
		name, password, secret := playerName, playerPassword, playerSecret
		if n%2 == 1 {
			name, password, secret = botName, botPassword, botSecret
		}

		var err error
		resp, err = that.place(t, name, password, secret, cell[0], cell[1])
		require.NoError(t, err)
	}

	return resp
}

func (that *fixture) board(t *testing.T) entity.BoardResponse {
	t.Helper()

	board, err := that.manager.Board(context.Background())
	require.NoError(t, err)

	return board
}

func TestGameManager_PlacePiece(t *testing.T) {
	t.Run("Accepted move", func(t *testing.T) {
		// Given: the player completed a handshake
		f := newFixture(t)
		secret := f.handshake(t, playerName)

		// When: placing X in the center
		resp, err := f.place(t, playerName, playerPassword, secret, 1, 1)

		// Then: the move is accepted and it is O's turn
		require.NoError(t, err)
		assert.Equal(t, MessageMoveAccepted, resp.Message)
		require.NotNil(t, resp.Board)
		assert.Equal(t, entity.PlayerX, resp.Board[1][1])

		current, err := f.manager.CurrentMove(context.Background())
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerO, current.CurrentPlayer)
		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.moves.WithLabelValues(entity.StatusAccepted)), 0)
	})

	t.Run("Wrong password leaves the board unchanged", func(t *testing.T) {
		// Given: a valid session for the player
		f := newFixture(t)
		secret := f.handshake(t, playerName)
		before := f.board(t)

		// When: the payload carries the wrong password
		_, err := f.place(t, playerName, "wrong", secret, 0, 0)

		// Then: authentication fails and nothing moved
		require.ErrorIs(t, err, apperror.ErrAuthentication)
		assert.Equal(t, before, f.board(t))
	})

	t.Run("No session secret", func(t *testing.T) {
		f := newFixture(t)
		secret := make([]byte, 8)

		_, err := f.place(t, playerName, playerPassword, secret, 0, 0)

		require.ErrorIs(t, err, apperror.ErrDecryption)
		assert.Equal(t, entity.NewBoard(), f.board(t).Board)
	})

	t.Run("Garbage ciphertext", func(t *testing.T) {
		f := newFixture(t)
		f.handshake(t, playerName)

		_, err := f.manager.PlacePiece(context.Background(), entity.EncryptedRequest{
			Username:      playerName,
			EncryptedData: "AAAAAAAAAAAAAAAAAAAAAA==",
		})

		assert.Equal(t, apperror.ErrDecryption, err)
	})

	t.Run("Envelope opened with another user's key", func(t *testing.T) {
		// Given: both parties hold secrets
		f := newFixture(t)
		playerSecret := f.handshake(t, playerName)
		f.handshake(t, botName)

		// When: the player's ciphertext is presented under the bot's name
		_, err := f.place(t, botName, playerPassword, playerSecret, 0, 0)

		// Then: the bot's key yields garbage, reported as a decryption failure
		assert.ErrorIs(t, err, apperror.ErrDecryption)
	})

	t.Run("Bot cannot open the round", func(t *testing.T) {
		// Given: the bot holds a valid secret
		f := newFixture(t)
		secret := f.handshake(t, botName)

		// When: the bot plays while X is to move
		_, err := f.place(t, botName, botPassword, secret, 0, 0)

		// Then: the turn error names X
		var turnErr *apperror.TurnError
		require.ErrorAs(t, err, &turnErr)
		assert.Equal(t, entity.PlayerX, turnErr.Mark)
	})

	t.Run("Missing coordinates", func(t *testing.T) {
		f := newFixture(t)
		secret := f.handshake(t, playerName)
		envelope, err := securechannel.Seal(map[string]string{"password": playerPassword}, playerName, secret)
		require.NoError(t, err)

		_, err = f.manager.PlacePiece(context.Background(), envelope)

		assert.ErrorIs(t, err, apperror.ErrInvalidCell)
	})

	t.Run("Secret storage failure is not a decryption failure", func(t *testing.T) {
		// Given: a secret store that cannot be read
		f := newFixtureWith(t, brokenSecrets{repository.NewMemorySecretRepository()}, repository.NewMemoryJournalRepository())

		// When: placing a piece
		_, err := f.place(t, playerName, playerPassword, make([]byte, 16), 0, 0)

		// Then: the storage error comes through untouched
		require.ErrorIs(t, err, errStorageDown)
		assert.NotErrorIs(t, err, apperror.ErrDecryption)
		assert.Equal(t, entity.NewBoard(), f.board(t).Board)
	})
}

func TestGameManager_RoundEnd(t *testing.T) {
	// X takes the first column while O answers in the second
	xWins := [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}}

	writeFlag := func(t *testing.T) string {
		t.Helper()

		flagPath := filepath.Join(t.TempDir(), "flag")
		require.NoError(t, os.WriteFile(flagPath, []byte("flag{dh_is_hard}"), 0o600))

		return flagPath
	}

	t.Run("Player win pays out the flag and resets", func(t *testing.T) {
		// Given: a flag on disk and some trash talk
		f := newFixture(t, WithFlagPath(writeFlag(t)))

		_, err := f.manager.SetTrashTalk(context.Background(), entity.TrashTalkRequest{Message: "gg"})
		require.NoError(t, err)
		before := f.board(t)

		// When: X completes a line
		resp := f.playRound(t, xWins...)

		// Then: the response carries the finished board and the flag
		assert.Equal(t, "X wins!", resp.Message)
		require.NotNil(t, resp.Won)
		assert.True(t, *resp.Won)
		assert.Equal(t, "flag{dh_is_hard}", resp.Flag)
		require.NotNil(t, resp.Board)
		assert.Equal(t, entity.PlayerX, resp.Board[2][0])

		// Then: the round restarted with a newer timestamp and no trash talk
		after := f.board(t)
		assert.Equal(t, entity.NewBoard(), after.Board)
		assert.Greater(t, after.GameStart, before.GameStart)

		talk, err := f.manager.GetTrashTalk(context.Background())
		require.NoError(t, err)
		assert.Empty(t, talk.Message)
	})

	t.Run("Bot win pays nothing", func(t *testing.T) {
		// Given: a flag on disk
		f := newFixture(t, WithFlagPath(writeFlag(t)))
		before := f.board(t)

		// When: O completes the middle row
		resp := f.playRound(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{0, 1}, [2]int{1, 1}, [2]int{2, 2}, [2]int{1, 2})

		// Then: the reply reports a loss with the finished board and no flag
		assert.Equal(t, "O wins!", resp.Message)
		require.NotNil(t, resp.Won)
		assert.False(t, *resp.Won)
		assert.Empty(t, resp.Flag)
		require.NotNil(t, resp.Board)
		assert.Equal(t, entity.Board{
			{entity.PlayerX, entity.PlayerX, entity.EmptyCell},
			{entity.PlayerO, entity.PlayerO, entity.PlayerO},
			{entity.EmptyCell, entity.EmptyCell, entity.PlayerX},
		}, *resp.Board)

		// Then: the round restarted
		after := f.board(t)
		assert.Equal(t, entity.NewBoard(), after.Board)
		assert.Greater(t, after.GameStart, before.GameStart)
	})

	t.Run("Ninth move ties", func(t *testing.T) {
		// Given: a fresh round
		f := newFixture(t, WithFlagPath(writeFlag(t)))
		before := f.board(t)

		// When: the board fills up without a line
		resp := f.playRound(t,
			[2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2},
			[2]int{1, 1}, [2]int{1, 0}, [2]int{1, 2},
			[2]int{2, 1}, [2]int{2, 0}, [2]int{2, 2},
		)

		// Then: the reply carries the full pre-reset board
		assert.Equal(t, MessageDraw, resp.Message)
		assert.True(t, resp.Tie)
		assert.Nil(t, resp.Won)
		assert.Empty(t, resp.Flag)
		require.NotNil(t, resp.Board)
		assert.True(t, resp.Board.IsFull())
		assert.Equal(t, entity.Board{
			{entity.PlayerX, entity.PlayerO, entity.PlayerX},
			{entity.PlayerX, entity.PlayerO, entity.PlayerO},
			{entity.PlayerO, entity.PlayerX, entity.PlayerX},
		}, *resp.Board)

		// Then: the next board is empty with a newer game_start
		after := f.board(t)
		assert.Equal(t, entity.NewBoard(), after.Board)
		assert.Greater(t, after.GameStart, before.GameStart)
	})

	t.Run("Missing flag file", func(t *testing.T) {
		f := newFixture(t)

		resp := f.playRound(t, xWins...)

		assert.Equal(t, MessageFlagNotFound, resp.Flag)
	})

	t.Run("Winner keeps the reply when the reset is not journaled", func(t *testing.T) {
		// Given: a journal that refuses only the reset entry
		journal := &mockJournal{}
		journal.On("Append", mock.Anything, mock.MatchedBy(func(entry entity.LogEntry) bool {
			return entry.Action == entity.ActionNewGame
		})).Return(errJournalDown).Once()
		journal.On("Append", mock.Anything, mock.Anything).Return(nil)

		f := newFixtureWith(t, repository.NewMemorySecretRepository(), journal, WithFlagPath(writeFlag(t)))

		// When: X completes a line
		resp := f.playRound(t, xWins...)

		// Then: the flag is still paid and the round reset anyway
		require.NotNil(t, resp.Won)
		assert.True(t, *resp.Won)
		assert.Equal(t, "flag{dh_is_hard}", resp.Flag)
		assert.Equal(t, entity.NewBoard(), f.board(t).Board)
		journal.AssertExpectations(t)
	})
}

func TestGameManager_NewGame(t *testing.T) {
	// Given: a move on the board
	f := newFixture(t)
	secret := f.handshake(t, playerName)
	_, err := f.place(t, playerName, playerPassword, secret, 2, 2)
	require.NoError(t, err)
	before := f.board(t)

	// When: starting a new game
	resp, err := f.manager.NewGame(context.Background())

	// Then: the board is clear and X is to move
	require.NoError(t, err)
	assert.Equal(t, MessageNewGame, resp.Message)
	require.NotNil(t, resp.Board)
	assert.Equal(t, entity.NewBoard(), *resp.Board)
	assert.Greater(t, f.board(t).GameStart, before.GameStart)

	current, err := f.manager.CurrentMove(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.PlayerX, current.CurrentPlayer)
}

func TestGameManager_ReadLog(t *testing.T) {
	ctx := context.Background()

	// Given: a handshake, a board read and some trash talk
	f := newFixture(t)
	f.handshake(t, playerName)
	f.board(t)
	_, err := f.manager.SetTrashTalk(ctx, entity.TrashTalkRequest{Message: "hi"})
	require.NoError(t, err)

	// When: reading the log
	entries, err := f.manager.ReadLog(ctx)

	// Then: every call is there in order, ending with the read itself
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{
		entity.ActionStartHandshake,
		entity.ActionCompleteHandshake,
		entity.ActionBoard,
		entity.ActionSetTrashTalk,
		entity.ActionReadLog,
	}, actions)

	// Then: the handshake entry exposes the public transcript
	var transcript struct {
		Username string   `json:"username"`
		P        *big.Int `json:"p"`
		G        *big.Int `json:"g"`
		GA       *big.Int `json:"ga"`
		I        int64    `json:"i"`
	}
	require.NoError(t, json.Unmarshal(entries[0].Data, &transcript))
	assert.Equal(t, playerName, transcript.Username)
	assert.NotNil(t, transcript.P)
	assert.NotNil(t, transcript.GA)
	assert.Equal(t, int64(1), transcript.I)
	assert.JSONEq(t, `{"message":"hi"}`, string(entries[3].Data))
}

func TestGameManager_CompleteHandshakeNotStarted(t *testing.T) {
	f := newFixture(t)

	err := f.manager.CompleteHandshake(context.Background(), entity.CompleteHandshakeRequest{
		Username: playerName,
		GB:       big.NewInt(3),
		I:        1,
	})

	require.ErrorIs(t, err, apperror.ErrHandshakeNotStarted)

	// the failed call is still journaled
	entries, err := f.journal.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ActionCompleteHandshake, entries[0].Action)
}

func TestGameManager_JournalFailure(t *testing.T) {
	// Given: a journal that rejects writes
	params, err := dhke.GenerateParameters(nil, 32)
	require.NoError(t, err)

	journal := &mockJournal{}
	journal.On("Append", mock.Anything, mock.AnythingOfType("entity.LogEntry")).Return(errJournalDown).Once()

	manager := NewGameManager(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		dhke.NewExchange(params, repository.NewMemorySecretRepository()),
		repository.NewPlayerRepository(),
		journal,
	)

	// When: reading the board
	_, err = manager.Board(context.Background())

	// Then: the failure is surfaced
	require.ErrorIs(t, err, errJournalDown)
	journal.AssertExpectations(t)
}

func TestGameManager_JournalKeepsRawRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown fields survive", func(t *testing.T) {
		// Given: a body with a field the request type does not know
		f := newFixture(t)
		raw := json.RawMessage(`{"message":"hi","mood":"smug"}`)

		// When: setting trash talk with that body attached
		_, err := f.manager.SetTrashTalk(ctx, entity.TrashTalkRequest{Message: "hi", Payload: raw})
		require.NoError(t, err)

		// Then: the journal holds the body as received
		entries, err := f.journal.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.JSONEq(t, string(raw), string(entries[0].Data))
	})

	t.Run("Rejected bodies are journaled", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.manager.RecordRejected(ctx, entity.ActionCompleteHandshake, []byte(`{"username":"player","gb":"x"}`)))
		require.NoError(t, f.manager.RecordRejected(ctx, entity.ActionPlacePiece, []byte(`{"username":`)))

		entries, err := f.manager.ReadLog(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, entity.ActionCompleteHandshake, entries[0].Action)
		assert.JSONEq(t, `{"username":"player","gb":"x"}`, string(entries[0].Data))
		assert.Equal(t, entity.ActionPlacePiece, entries[1].Action)
		assert.JSONEq(t, `"{\"username\":"`, string(entries[1].Data))
	})
}
