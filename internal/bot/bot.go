// Package bot is the automated O player. It polls the game API like any other
// client and answers with the minimax move.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rocketscienceinc/tickeyhellman/internal/client"
	"github.com/rocketscienceinc/tickeyhellman/internal/entity"
	"github.com/rocketscienceinc/tickeyhellman/internal/securechannel"
	"github.com/rocketscienceinc/tickeyhellman/internal/tictactoe"
)

const defaultPollInterval = time.Second

var ErrStuck = errors.New("bot is stuck")

var trashTalk = []string{
	"Really? That's your move? My circuits are bored already.",
	"Are you even trying? Or should I go easy on you?",
	"You're like a tic without the tac. Clueless.",
	"I've seen toddlers with better strategies than this!",
	"This is too easy. Do you want me to play blindfolded?",
	"Oh, nice move... for a rookie!",
	"Your Xs and Os are all over the place, just like your strategy.",
	"Beep boop! Victory imminent. You might as well quit now.",
	"If you're aiming to lose, you're doing great!",
	"I almost feel bad for you. Almost.",
}

type gameAPI interface {
	CurrentMove(ctx context.Context) (string, error)
	Handshake(ctx context.Context, username string, cachedBase *big.Int) (*client.Session, error)
	SetTrashTalk(ctx context.Context, message string) error
	Board(ctx context.Context) (entity.BoardResponse, error)
	PlacePiece(ctx context.Context, req entity.EncryptedRequest) (entity.PlacePieceResponse, error)
}

type Config struct {
	Username     string
	Password     string
	StartupDelay time.Duration
	PollInterval time.Duration
	ThinkDelay   time.Duration
	// HandicapMove is the move number on which the bot leaks its secret.
	HandicapMove int
}

type Bot struct {
	logger *slog.Logger
	api    gameAPI
	conf   Config

	cachedBase *big.Int
	moves      int
}

func New(logger *slog.Logger, api gameAPI, conf Config) *Bot {
	if conf.PollInterval <= 0 {
		conf.PollInterval = defaultPollInterval
	}

	return &Bot{
		logger: logger.With("component", "bot", "username", conf.Username),
		api:    api,
		conf:   conf,
	}
}

// Run polls until ctx is canceled or the bot finds no move on its turn.
func (that *Bot) Run(ctx context.Context) error {
	if !sleep(ctx, that.conf.StartupDelay) {
		return nil
	}

	that.logger.Info("bot is ready")

	ticker := time.NewTicker(that.conf.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := that.step(ctx)
		switch {
		case errors.Is(err, ErrStuck):
			that.logger.Error("bot is stuck, stopping")
			return err
		case err != nil && ctx.Err() == nil:
			that.logger.Warn("bot turn failed", "error", err)
		}
	}
}

// step plays one turn if it is O's turn.
func (that *Bot) step(ctx context.Context) error {
	turn, err := that.api.CurrentMove(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current move: %w", err)
	}

	if turn != entity.PlayerO {
		return nil
	}

	that.logger.Debug("bot is thinking")
	if !sleep(ctx, that.conf.ThinkDelay) {
		return ctx.Err()
	}

	session, err := that.handshake(ctx)
	if err != nil {
		return err
	}

	var talk string
	if that.moves == that.conf.HandicapMove {
		talk = fmt.Sprintf("Looks like you need a handicap. Shared Secret: %s", session.SecretValue)

		if session, err = that.handshake(ctx); err != nil {
			return err
		}
	} else {
		talk = trashTalk[rand.IntN(len(trashTalk))] //nolint: gosec // it's ok
	}

	if err = that.api.SetTrashTalk(ctx, talk); err != nil {
		return fmt.Errorf("failed to set trash talk: %w", err)
	}

	board, err := that.api.Board(ctx)
	if err != nil {
		return fmt.Errorf("failed to get board: %w", err)
	}

	move, ok := tictactoe.BestMove(board.Board, entity.PlayerO)
	if !ok {
		return ErrStuck
	}

	envelope, err := securechannel.Seal(entity.MovePayload{
		Password: that.conf.Password,
		X:        &move.Row,
		Y:        &move.Col,
	}, that.conf.Username, session.Secret)
	if err != nil {
		return fmt.Errorf("failed to seal move: %w", err)
	}

	resp, err := that.api.PlacePiece(ctx, envelope)
	that.moves++
	if client.IsStatus(err, http.StatusForbidden) {
		that.logger.Info("turn moved on before the bot played", "error", err)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to place piece: %w", err)
	}

	that.logger.Info("bot played", "x", move.Row, "y", move.Col, "message", resp.Message)

	return nil
}

func (that *Bot) handshake(ctx context.Context) (*client.Session, error) {
	session, err := that.api.Handshake(ctx, that.conf.Username, that.cachedBase)
	if err != nil {
		return nil, fmt.Errorf("failed to handshake: %w", err)
	}

	that.cachedBase = session.Base

	return session, nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
