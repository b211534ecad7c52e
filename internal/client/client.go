// Package client is a typed HTTP client for the game API.
package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rocketscienceinc/tickeyhellman/internal/dhke"
	"github.com/rocketscienceinc/tickeyhellman/internal/entity"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (that *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", that.Status, that.Message)
}

// Session is the result of a full handshake from the peer side.
type Session struct {
	Secret      []byte
	SecretValue *big.Int
	Base        *big.Int
	I           int64
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (that *Client) StartHandshake(ctx context.Context, username string) (dhke.Handshake, error) {
	var resp entity.StartHandshakeResponse
	if err := that.do(ctx, http.MethodPost, "/start_handshake", entity.StartHandshakeRequest{Username: username}, &resp); err != nil {
		return dhke.Handshake{}, err
	}

	return dhke.Handshake{P: resp.P, G: resp.G, GA: resp.GA, I: resp.I}, nil
}

func (that *Client) CompleteHandshake(ctx context.Context, username string, gb *big.Int, i int64) error {
	req := entity.CompleteHandshakeRequest{Username: username, GB: gb, I: i}
	return that.do(ctx, http.MethodPost, "/complete_handshake", req, &entity.SuccessResponse{})
}

// Handshake runs start, continue and complete. cachedBase may be nil on the
// first round; the returned Session.Base should be passed on the next one.
func (that *Client) Handshake(ctx context.Context, username string, cachedBase *big.Int) (*Session, error) {
	h, err := that.StartHandshake(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to start handshake: %w", err)
	}

	peer, err := dhke.ContinueHandshake(rand.Reader, h, cachedBase)
	if err != nil {
		return nil, fmt.Errorf("failed to continue handshake: %w", err)
	}

	if err = that.CompleteHandshake(ctx, username, peer.GB, h.I); err != nil {
		return nil, fmt.Errorf("failed to complete handshake: %w", err)
	}

	params := dhke.Parameters{P: h.P, G: h.G}

	return &Session{
		Secret:      params.SecretBytes(peer.Secret),
		SecretValue: peer.Secret,
		Base:        peer.Base,
		I:           h.I,
	}, nil
}

func (that *Client) CurrentMove(ctx context.Context) (string, error) {
	var resp entity.CurrentMoveResponse
	if err := that.do(ctx, http.MethodGet, "/current_move", nil, &resp); err != nil {
		return "", err
	}

	return resp.CurrentPlayer, nil
}

func (that *Client) Board(ctx context.Context) (entity.BoardResponse, error) {
	var resp entity.BoardResponse
	err := that.do(ctx, http.MethodGet, "/board", nil, &resp)

	return resp, err
}

func (that *Client) PlacePiece(ctx context.Context, req entity.EncryptedRequest) (entity.PlacePieceResponse, error) {
	var resp entity.PlacePieceResponse
	err := that.do(ctx, http.MethodPost, "/place_piece", req, &resp)

	return resp, err
}

func (that *Client) NewGame(ctx context.Context) (entity.MessageResponse, error) {
	var resp entity.MessageResponse
	err := that.do(ctx, http.MethodPost, "/new_game", nil, &resp)

	return resp, err
}

func (that *Client) SetTrashTalk(ctx context.Context, message string) error {
	return that.do(ctx, http.MethodPost, "/set_trash_talk", entity.TrashTalkRequest{Message: message}, &entity.MessageResponse{})
}

func (that *Client) GetTrashTalk(ctx context.Context) (string, error) {
	var resp entity.MessageResponse
	if err := that.do(ctx, http.MethodGet, "/get_trash_talk", nil, &resp); err != nil {
		return "", err
	}

	return resp.Message, nil
}

func (that *Client) ReadLog(ctx context.Context) ([]entity.LogEntry, error) {
	var resp []entity.LogEntry
	err := that.do(ctx, http.MethodGet, "/read_log", nil, &resp)

	return resp, err
}

func (that *Client) Ping(ctx context.Context) error {
	return that.do(ctx, http.MethodGet, "/ping", nil, &entity.MessageResponse{})
}

func (that *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else if method == http.MethodPost {
		reader = strings.NewReader("{}")
	}

	req, err := http.NewRequestWithContext(ctx, method, that.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := that.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr entity.ErrorResponse
		if err = json.Unmarshal(raw, &apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}

		return &APIError{Status: resp.StatusCode, Message: apiErr.Message}
	}

	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	return nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
