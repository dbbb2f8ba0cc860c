package game

// WinMessages is the pool for countdown wins
var WinMessages = []string{
	"Amazing! You brought clean water!",
	"You did it! Every drop counts!",
	"Victory! You're a water hero!",
	"Fantastic! You made a difference!",
	"Great job! Water for all!",
}

// LoseMessages is the pool for countdown losses
var LoseMessages = []string{
	"Try again! Every drop matters.",
	"Keep going! You can do it!",
	"Almost there! Give it another shot.",
	"Don't give up! Water is life.",
	"So close! Try once more.",
}

// BombMessages is the pool for sessions ended by catching a bomb
var BombMessages = []string{
	"Boom! You caught a bomb.",
	"Kaboom! Watch out for bombs.",
	"Ouch! Bombs end the game.",
}

// MessagePools groups the outcome message pools so hosts can localize them
type MessagePools struct {
	Win  []string
	Lose []string
	Bomb []string
}

// DefaultMessagePools returns the built-in English pools
func DefaultMessagePools() MessagePools {
	return MessagePools{Win: WinMessages, Lose: LoseMessages, Bomb: BombMessages}
}

func (m MessagePools) pick(r Random, result Result, reason EndReason) string {
	switch {
	case reason == EndBomb && len(m.Bomb) > 0:
		return pick(r, m.Bomb)
	case result == ResultWin:
		return pick(r, m.Win)
	default:
		return pick(r, m.Lose)
	}
}
