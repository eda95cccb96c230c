package mqtt

import (
	"strconv"
	"strings"

	"github.com/AaronLay10/StageEngine/internal/stage"
)

// DefaultPrefix is the topic root when none is configured.
const DefaultPrefix = "stageengine"

// Topics names the per-match topics under <prefix>/<match>/.
type Topics struct {
	Prefix  string
	MatchID string
}

func (t Topics) base() string {
	prefix := strings.TrimSuffix(t.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "/" + t.MatchID + "/"
}

// Join carries the roster registration.
func (t Topics) Join() string { return t.base() + "join" }

// Request carries player commands.
func (t Topics) Request() string { return t.base() + "request" }

// Leave carries player departures.
func (t Topics) Leave() string { return t.base() + "leave" }

// Broadcast carries text for every player.
func (t Topics) Broadcast() string { return t.base() + "broadcast" }

// Player carries text for one player.
func (t Topics) Player(pid stage.PlayerID) string {
	return t.base() + "players/" + strconv.FormatUint(uint64(pid), 10)
}
