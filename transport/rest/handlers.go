package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/rocketscienceinc/tickeyhellman/internal/apperror"
	"github.com/rocketscienceinc/tickeyhellman/internal/entity"
)

type GameService interface {
	StartHandshake(ctx context.Context, req entity.StartHandshakeRequest) (entity.StartHandshakeResponse, error)
	CompleteHandshake(ctx context.Context, req entity.CompleteHandshakeRequest) error
	CurrentMove(ctx context.Context) (entity.CurrentMoveResponse, error)
	Board(ctx context.Context) (entity.BoardResponse, error)
	PlacePiece(ctx context.Context, req entity.EncryptedRequest) (entity.PlacePieceResponse, error)
	NewGame(ctx context.Context) (entity.MessageResponse, error)
	SetTrashTalk(ctx context.Context, req entity.TrashTalkRequest) (entity.MessageResponse, error)
	GetTrashTalk(ctx context.Context) (entity.MessageResponse, error)
	ReadLog(ctx context.Context) ([]entity.LogEntry, error)
	RecordRejected(ctx context.Context, action string, body []byte) error
}

type Handlers struct {
	logger  *slog.Logger
	service GameService
}

func NewHandlers(logger *slog.Logger, service GameService) *Handlers {
	return &Handlers{
		logger:  logger.With("component", "rest"),
		service: service,
	}
}

func (that *Handlers) StartHandshake(c *gin.Context) {
	var req entity.StartHandshakeRequest
	if _, ok := that.bind(c, entity.ActionStartHandshake, &req); !ok {
		return
	}

	resp, err := that.service.StartHandshake(c.Request.Context(), req)
	that.respond(c, resp, err)
}

func (that *Handlers) CompleteHandshake(c *gin.Context) {
	var req entity.CompleteHandshakeRequest
	payload, ok := that.bind(c, entity.ActionCompleteHandshake, &req)
	if !ok {
		return
	}
	req.Payload = payload

	err := that.service.CompleteHandshake(c.Request.Context(), req)
	that.respond(c, entity.SuccessResponse{Success: true}, err)
}

func (that *Handlers) CurrentMove(c *gin.Context) {
	resp, err := that.service.CurrentMove(c.Request.Context())
	that.respond(c, resp, err)
}

func (that *Handlers) Board(c *gin.Context) {
	resp, err := that.service.Board(c.Request.Context())
	that.respond(c, resp, err)
}

func (that *Handlers) PlacePiece(c *gin.Context) {
	var req entity.EncryptedRequest
	payload, ok := that.bind(c, entity.ActionPlacePiece, &req)
	if !ok {
		return
	}
	req.Payload = payload

	resp, err := that.service.PlacePiece(c.Request.Context(), req)
	that.respond(c, resp, err)
}

func (that *Handlers) NewGame(c *gin.Context) {
	resp, err := that.service.NewGame(c.Request.Context())
	that.respond(c, resp, err)
}

func (that *Handlers) SetTrashTalk(c *gin.Context) {
	var req entity.TrashTalkRequest
	payload, ok := that.bind(c, entity.ActionSetTrashTalk, &req)
	if !ok {
		return
	}
	req.Payload = payload

	resp, err := that.service.SetTrashTalk(c.Request.Context(), req)
	that.respond(c, resp, err)
}

func (that *Handlers) GetTrashTalk(c *gin.Context) {
	resp, err := that.service.GetTrashTalk(c.Request.Context())
	that.respond(c, resp, err)
}

func (that *Handlers) ReadLog(c *gin.Context) {
	resp, err := that.service.ReadLog(c.Request.Context())
	that.respond(c, resp, err)
}

// bind decodes the body into req and returns the body as received. A body
// that does not bind is still journaled under action.
func (that *Handlers) bind(c *gin.Context, action string, req any) (json.RawMessage, bool) {
	body, err := c.GetRawData()
	if err == nil {
		err = binding.JSON.BindBody(body, req)
	}

	if err != nil {
		if recErr := that.service.RecordRejected(c.Request.Context(), action, body); recErr != nil {
			that.logger.Error("could not journal rejected request", "action", action, "error", recErr)
		}

		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Message: "Invalid request body", Error: true})
		return nil, false
	}

	return body, true
}

func (that *Handlers) respond(c *gin.Context, resp any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	status, message := statusOf(err)
	if status == http.StatusInternalServerError {
		that.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, entity.ErrorResponse{Message: message, Error: true})
}

// statusOf maps the error taxonomy to an HTTP status and a client message.
func statusOf(err error) (int, string) {
	var turnErr *apperror.TurnError

	switch {
	case errors.As(err, &turnErr):
		return http.StatusForbidden, fmt.Sprintf("Only the %s can play as %s", turnErr.Role(), turnErr.Mark)
	case errors.Is(err, apperror.ErrDecryption):
		return http.StatusBadRequest, "Decryption failed"
	case errors.Is(err, apperror.ErrAuthentication):
		return http.StatusUnauthorized, "Authentication failed"
	case errors.Is(err, apperror.ErrInvalidCell):
		return http.StatusBadRequest, "Invalid move"
	case errors.Is(err, apperror.ErrCellOccupied):
		return http.StatusBadRequest, "Cell already occupied"
	case errors.Is(err, apperror.ErrHandshakeNotStarted):
		return http.StatusBadRequest, "Handshake not started"
	case errors.Is(err, apperror.ErrInvalidIteration):
		return http.StatusBadRequest, "Invalid iteration"
	case errors.Is(err, apperror.ErrInvalidPublicValue):
		return http.StatusBadRequest, "Invalid public value"
	case errors.Is(err, apperror.ErrProtocol):
		return http.StatusBadRequest, "Protocol error"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "Invalid move"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
