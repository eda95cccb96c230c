package match

import (
	"strconv"

	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/stage"
	"github.com/AaronLay10/StageEngine/internal/storage/postgres"
)

// DefaultHistoryLimit is the default number of events loaded for a replay.
const DefaultHistoryLimit = 1000

// HistorySource returns a match's persisted events, newest first.
type HistorySource interface {
	Query(matchID string, limit int) ([]postgres.EventRow, error)
}

// Summary is what a replay reconstructs from persisted events.
type Summary struct {
	MatchID     string                   `json:"match_id"`
	Started     bool                     `json:"started"`
	Over        bool                     `json:"over"`
	Aborted     bool                     `json:"aborted"`
	Stages      []string                 `json:"stages"`
	Transitions map[string]int           `json:"transitions"`
	Left        []stage.PlayerID         `json:"left,omitempty"`
	Scores      map[stage.PlayerID]int64 `json:"scores,omitempty"`
}

// ReplayHistory rebuilds a match summary from persisted events. It returns a nil
// summary if source is nil or nothing was recorded for the match.
func ReplayHistory(source HistorySource, matchID string, limit int) (*Summary, int, error) {
	if source == nil {
		return nil, 0, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := source.Query(matchID, limit)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	// Query returns DESC
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	sum := &Summary{
		MatchID:     matchID,
		Transitions: make(map[string]int),
	}

	for _, row := range rows {
		switch row.Event {
		case "match.started":
			sum.Started = true

		case "stage.begin":
			if name, ok := row.Fields["stage"].(string); ok {
				sum.Stages = append(sum.Stages, name)
			}

		case "stage.transition":
			if reason, ok := row.Fields["reason"].(string); ok {
				sum.Transitions[reason]++
			}

		case "player.left":
			if pid, ok := row.Fields["player_id"].(float64); ok {
				sum.Left = append(sum.Left, stage.PlayerID(pid))
			}

		case "match.over", "match.aborted":
			sum.Over = true
			sum.Aborted = row.Event == "match.aborted"
			sum.Scores = parseScores(row.Fields["scores"])
		}
	}

	return sum, len(rows), nil
}

// JSONB numbers decode as float64.
func parseScores(v interface{}) map[stage.PlayerID]int64 {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[stage.PlayerID]int64, len(raw))
	for k, val := range raw {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			continue
		}
		switch n := val.(type) {
		case float64:
			out[stage.PlayerID(id)] = int64(n)
		case int64:
			out[stage.PlayerID(id)] = n
		case int:
			out[stage.PlayerID(id)] = int64(n)
		}
	}
	return out
}

// EmitHistoryReplayed records that a replay was served.
func EmitHistoryReplayed(matchID string, replayed int) {
	events.Emit("info", "system.history_replayed", "", map[string]interface{}{
		"match_id": matchID,
		"replayed": replayed,
	})
}
