package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/rocketscienceinc/tickeyhellman/internal/apperror"
	"github.com/rocketscienceinc/tickeyhellman/internal/dhke"
	"github.com/rocketscienceinc/tickeyhellman/internal/entity"
	"github.com/rocketscienceinc/tickeyhellman/internal/securechannel"
)

const (
	MessageMoveAccepted  = "Move accepted"
	MessageDraw          = "It's a draw!"
	MessageNewGame       = "New game started"
	MessageTrashTalk     = "Trash talk updated"
	MessageFlagNotFound  = "Flag file not found, please contact admin"
	messageWinnerPattern = "%s wins!"
)

var emptyData = json.RawMessage(`{}`)

type keyExchange interface {
	Initiate(ctx context.Context, username string) (dhke.Handshake, error)
	Complete(ctx context.Context, username string, gb *big.Int, i int64) error
	SharedSecret(ctx context.Context, username string) ([]byte, error)
}

type playerRepo interface {
	Authenticate(username, password string) (*entity.Player, error)
}

type journalRepo interface {
	Append(ctx context.Context, entry entity.LogEntry) error
	List(ctx context.Context) ([]entity.LogEntry, error)
}

type Option func(*GameManager)

func WithClock(clock func() time.Time) Option {
	return func(that *GameManager) {
		that.clock = clock
	}
}

// WithFlagPath sets the file whose content is paid out when X wins.
func WithFlagPath(path string) Option {
	return func(that *GameManager) {
		that.flagPath = path
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(that *GameManager) {
		that.metrics = metrics
	}
}

// GameManager owns the single game session: the round, the trash talk and the
// ordering of the journal. One mutex serializes every operation.
type GameManager struct {
	logger *slog.Logger

	exchange keyExchange
	players  playerRepo
	journal  journalRepo
	metrics  *Metrics

	clock    func() time.Time
	flagPath string

	mu        sync.Mutex
	round     *entity.Round
	trashTalk string
}

func NewGameManager(logger *slog.Logger, exchange keyExchange, players playerRepo, journal journalRepo, opts ...Option) *GameManager {
	manager := &GameManager{
		logger: logger,

		exchange: exchange,
		players:  players,
		journal:  journal,

		clock:    time.Now,
		flagPath: "/flag",
	}

	for _, opt := range opts {
		opt(manager)
	}

	manager.round = entity.NewRound(manager.clock)

	return manager
}

func (that *GameManager) StartHandshake(ctx context.Context, req entity.StartHandshakeRequest) (entity.StartHandshakeResponse, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	handshake, err := that.exchange.Initiate(ctx, req.Username)
	that.metrics.handshake("start", err)
	if err != nil {
		return entity.StartHandshakeResponse{}, fmt.Errorf("failed to start handshake: %w", err)
	}

	resp := entity.StartHandshakeResponse{P: handshake.P, G: handshake.G, GA: handshake.GA, I: handshake.I}

	// the entry carries the public transcript next to the username
	transcript := struct {
		Username string `json:"username"`
		entity.StartHandshakeResponse
	}{req.Username, resp}
	if err = that.appendLog(ctx, entity.ActionStartHandshake, transcript); err != nil {
		return entity.StartHandshakeResponse{}, err
	}

	return resp, nil
}

func (that *GameManager) CompleteHandshake(ctx context.Context, req entity.CompleteHandshakeRequest) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.appendLog(ctx, entity.ActionCompleteHandshake, requestData(req.Payload, req)); err != nil {
		return err
	}

	err := that.exchange.Complete(ctx, req.Username, req.GB, req.I)
	that.metrics.handshake("complete", err)
	if err != nil {
		return fmt.Errorf("failed to complete handshake: %w", err)
	}

	return nil
}

func (that *GameManager) CurrentMove(ctx context.Context) (entity.CurrentMoveResponse, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.appendLog(ctx, entity.ActionCurrentMove, emptyData); err != nil {
		return entity.CurrentMoveResponse{}, err
	}

	return entity.CurrentMoveResponse{CurrentPlayer: that.round.Turn()}, nil
}

func (that *GameManager) Board(ctx context.Context) (entity.BoardResponse, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.appendLog(ctx, entity.ActionBoard, emptyData); err != nil {
		return entity.BoardResponse{}, err
	}

	snapshot := that.round.Snapshot()

	return entity.BoardResponse{Board: snapshot.Board, GameStart: snapshot.GameStart()}, nil
}

// PlacePiece opens the envelope with the secret of the claimed username,
// authenticates the password inside it and applies the move for that
// player's mark. Rejections leave the session unchanged.
func (that *GameManager) PlacePiece(ctx context.Context, req entity.EncryptedRequest) (entity.PlacePieceResponse, error) {
	log := that.logger.With("method", "PlacePiece", "username", req.Username)

	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.appendLog(ctx, entity.ActionPlacePiece, requestData(req.Payload, req)); err != nil {
		return entity.PlacePieceResponse{}, err
	}

	payload, err := that.open(ctx, req)
	if err != nil {
		if !errors.Is(err, apperror.ErrProtocol) && !errors.Is(err, apperror.ErrDecryption) {
			log.Error("could not load session secret", "error", err)
			that.metrics.move("failed")

			return entity.PlacePieceResponse{}, fmt.Errorf("failed to open move: %w", err)
		}

		log.Warn("could not open move", "error", err)
		that.metrics.move("decryption_failed")

		return entity.PlacePieceResponse{}, apperror.ErrDecryption
	}

	player, err := that.players.Authenticate(req.Username, payload.Password)
	if err != nil {
		log.Warn("authentication failed", "error", err)
		that.metrics.move("authentication_failed")

		return entity.PlacePieceResponse{}, apperror.ErrAuthentication
	}

	if payload.X == nil || payload.Y == nil {
		that.metrics.move("rejected")
		return entity.PlacePieceResponse{}, fmt.Errorf("%w: missing coordinates", apperror.ErrInvalidCell)
	}

	outcome, err := that.round.ApplyMove(*payload.X, *payload.Y, player.Mark)
	if err != nil {
		log.Info("move rejected", "x", *payload.X, "y", *payload.Y, "error", err)
		that.metrics.move("rejected")

		return entity.PlacePieceResponse{}, fmt.Errorf("failed to place piece: %w", err)
	}

	that.metrics.move(outcome.Status)

	board := outcome.Board
	resp := entity.PlacePieceResponse{Message: MessageMoveAccepted, Board: &board}

	switch outcome.Status {
	case entity.StatusWon:
		won := outcome.Winner == entity.PlayerX
		resp.Message = fmt.Sprintf(messageWinnerPattern, outcome.Winner)
		resp.Won = &won
		if won && !player.IsBot() {
			resp.Flag = that.readFlag(log)
		}

		log.Info("round won", "winner", outcome.Winner)
	case entity.StatusTied:
		resp.Message = MessageDraw
		resp.Tie = true

		log.Info("round tied")
	}

	if outcome.IsTerminal() {
		// the round already reset itself; record it like a requested reset
		that.trashTalk = ""
		if err = that.appendLog(ctx, entity.ActionNewGame, emptyData); err != nil {
			// the round is already over; the winner still gets the reply
			log.Warn("round reset not journaled", "error", err)
		}
	}

	return resp, nil
}

func (that *GameManager) NewGame(ctx context.Context) (entity.MessageResponse, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.appendLog(ctx, entity.ActionNewGame, emptyData); err != nil {
		return entity.MessageResponse{}, err
	}

	that.round.Reset()
	that.trashTalk = ""
	board := that.round.Snapshot().Board

	return entity.MessageResponse{Message: MessageNewGame, Board: &board}, nil
}

// SetTrashTalk overwrites the shared message. Anyone may call it.
func (that *GameManager) SetTrashTalk(ctx context.Context, req entity.TrashTalkRequest) (entity.MessageResponse, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.appendLog(ctx, entity.ActionSetTrashTalk, requestData(req.Payload, req)); err != nil {
		return entity.MessageResponse{}, err
	}

	that.trashTalk = req.Message

	return entity.MessageResponse{Message: MessageTrashTalk}, nil
}

func (that *GameManager) GetTrashTalk(ctx context.Context) (entity.MessageResponse, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.appendLog(ctx, entity.ActionGetTrashTalk, emptyData); err != nil {
		return entity.MessageResponse{}, err
	}

	return entity.MessageResponse{Message: that.trashTalk}, nil
}

// ReadLog returns the journal including the entry for this call.
func (that *GameManager) ReadLog(ctx context.Context) ([]entity.LogEntry, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.appendLog(ctx, entity.ActionReadLog, emptyData); err != nil {
		return nil, err
	}

	entries, err := that.journal.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	return entries, nil
}

// RecordRejected journals a request body that could not be parsed. Bodies
// that are not JSON are kept as a string.
func (that *GameManager) RecordRejected(ctx context.Context, action string, body []byte) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if json.Valid(body) {
		return that.appendLog(ctx, action, json.RawMessage(body))
	}

	return that.appendLog(ctx, action, string(body))
}

func (that *GameManager) open(ctx context.Context, req entity.EncryptedRequest) (entity.MovePayload, error) {
	var payload entity.MovePayload

	secret, err := that.exchange.SharedSecret(ctx, req.Username)
	if err != nil {
		return payload, err
	}

	if err = securechannel.Open(req.EncryptedData, secret, &payload); err != nil {
		return payload, err
	}

	return payload, nil
}

func (that *GameManager) readFlag(log *slog.Logger) string {
	flag, err := os.ReadFile(that.flagPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Error("could not read flag", "path", that.flagPath, "error", err)
		}

		return MessageFlagNotFound
	}

	return string(flag)
}

// requestData prefers the body as it arrived over the parsed request.
func requestData(payload json.RawMessage, req any) any {
	if len(payload) > 0 {
		return payload
	}

	return req
}

func (that *GameManager) appendLog(ctx context.Context, action string, data any) error {
	raw, ok := data.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			return fmt.Errorf("could not marshal %s request: %w", action, err)
		}
	}

	if err := that.journal.Append(ctx, entity.LogEntry{Action: action, Data: raw}); err != nil {
		that.logger.Error("could not append to journal", "action", action, "error", err)
		return fmt.Errorf("failed to append %s to log: %w", action, err)
	}

	return nil
}
