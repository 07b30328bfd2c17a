// Package model contains domain models passed between layers.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Separators used to build a DetectionKey. They cannot appear in OCR text.
const (
	keyFieldSep = "\x1e"
	keyItemSep  = "\x1f"
)

// Roster is a team lineup read from one lineup card.
// The first four fields mirror the persisted record layout.
type Roster struct {
	TeamName  string    `json:"team_name" bson:"team_name"`
	Names     []string  `json:"name" bson:"name"`
	Numbers   []string  `json:"num" bson:"num"`
	Frame     int       `json:"frame" bson:"frame"`
	Video     string    `json:"video,omitempty" bson:"video,omitempty"`
	ScanID    string    `json:"scan_id,omitempty" bson:"scan_id,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Player is one (number, name) entry on a roster.
type Player struct {
	Number string `json:"num"`
	Name   string `json:"name"`
}

// Players pairs numbers and names in card order. A trailing number without a
// name is dropped.
func (r Roster) Players() []Player {
	n := len(r.Names)
	if len(r.Numbers) < n {
		n = len(r.Numbers)
	}
	players := make([]Player, n)
	for i := 0; i < n; i++ {
		players[i] = Player{Number: r.Numbers[i], Name: r.Names[i]}
	}
	return players
}

// DetectionKey identifies the same physical card seen on different frames.
type DetectionKey string

// Key returns the roster's detection key built from team, names and numbers.
func (r Roster) Key() DetectionKey {
	var b strings.Builder
	b.WriteString(r.TeamName)
	b.WriteString(keyFieldSep)
	b.WriteString(strings.Join(r.Names, keyItemSep))
	b.WriteString(keyFieldSep)
	b.WriteString(strings.Join(r.Numbers, keyItemSep))
	return DetectionKey(b.String())
}

// Hash returns the hex SHA-256 of the key, used as a stable storage identifier.
func (k DetectionKey) Hash() string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:])
}
