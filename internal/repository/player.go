package repository

import (
	"crypto/subtle"
	"fmt"

	"github.com/rocketscienceinc/tickeyhellman/internal/apperror"
	"github.com/rocketscienceinc/tickeyhellman/internal/entity"
)

type PlayerRepository interface {
	GetByUsername(username string) (*entity.Player, error)
	GetByMark(mark string) (*entity.Player, error)
	Authenticate(username, password string) (*entity.Player, error)
}

// memPlayer is the plaintext credential store. It is fixed at boot.
type memPlayer struct {
	players map[string]*entity.Player
}

func NewPlayerRepository(players ...*entity.Player) PlayerRepository {
	repo := &memPlayer{players: make(map[string]*entity.Player, len(players))}
	for _, player := range players {
		repo.players[player.Username] = player
	}

	return repo
}

func (that *memPlayer) GetByUsername(username string) (*entity.Player, error) {
	player, ok := that.players[username]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperror.ErrUnknownUser, username)
	}

	return player, nil
}

func (that *memPlayer) GetByMark(mark string) (*entity.Player, error) {
	for _, player := range that.players {
		if player.Mark == mark {
			return player, nil
		}
	}

	return nil, fmt.Errorf("%w: no player for %s", apperror.ErrNotFound, mark)
}

func (that *memPlayer) Authenticate(username, password string) (*entity.Player, error) {
	player, err := that.GetByUsername(username)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(player.Password), []byte(password)) != 1 {
		return nil, apperror.ErrAuthentication
	}

	return player, nil
}
