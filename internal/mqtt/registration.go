package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/StageEngine/internal/match"
	"github.com/AaronLay10/StageEngine/internal/stage"
)

// RosterPayload represents a v1 roster registration message.
type RosterPayload struct {
	Version int                `json:"version"`
	MatchID string             `json:"match_id"`
	Seats   []SeatRegistration `json:"seats"`
}

// SeatRegistration describes one participant in a roster.
type SeatRegistration struct {
	PlayerID uint64 `json:"player_id"`
	Name     string `json:"name"`
	Computer bool   `json:"computer"`
}

// ParseRoster parses a roster payload from JSON bytes.
func ParseRoster(data []byte) (*RosterPayload, error) {
	var payload RosterPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid roster JSON: %w", err)
	}

	if payload.Version != 1 {
		return nil, fmt.Errorf("unsupported roster version: %d", payload.Version)
	}

	if payload.MatchID == "" {
		return nil, fmt.Errorf("match_id is required")
	}

	return &payload, nil
}

// RosterLimits bounds an acceptable roster.
type RosterLimits struct {
	MinSeats int
	MaxSeats int
}

// ValidationResult contains validation outcome.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateRoster checks a roster against seat limits.
func ValidateRoster(payload *RosterPayload, limits RosterLimits) *ValidationResult {
	result := &ValidationResult{Valid: true}

	seen := make(map[uint64]bool, len(payload.Seats))
	humans := 0
	for _, seat := range payload.Seats {
		if seen[seat.PlayerID] {
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate player_id: %d", seat.PlayerID))
			result.Valid = false
			continue
		}
		seen[seat.PlayerID] = true

		if seat.Name == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("player %d has no name", seat.PlayerID))
		}
		if !seat.Computer {
			humans++
		}
	}

	if limits.MinSeats > 0 && len(seen) < limits.MinSeats {
		result.Errors = append(result.Errors, fmt.Sprintf("too few seats: %d (min %d)", len(seen), limits.MinSeats))
		result.Valid = false
	}
	if limits.MaxSeats > 0 && len(seen) > limits.MaxSeats {
		result.Errors = append(result.Errors, fmt.Sprintf("too many seats: %d (max %d)", len(seen), limits.MaxSeats))
		result.Valid = false
	}
	if len(seen) > 0 && humans == 0 {
		result.Warnings = append(result.Warnings, "roster has no human seats")
	}

	return result
}

// MatchSeats converts the roster to match seats, keeping roster order.
// Unnamed seats are called "player <id>".
func (p *RosterPayload) MatchSeats() []match.Seat {
	seats := make([]match.Seat, 0, len(p.Seats))
	for _, s := range p.Seats {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("player %d", s.PlayerID)
		}
		seats = append(seats, match.Seat{
			ID:       stage.PlayerID(s.PlayerID),
			Name:     name,
			Computer: s.Computer,
		})
	}
	return seats
}
