package entity

// Player is a registered identity and the mark it is allowed to play.
type Player struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Mark     string `json:"mark"`
	Bot      bool   `json:"bot,omitempty"`
}

func (that *Player) IsBot() bool {
	return that.Bot
}
