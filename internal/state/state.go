package state

import (
	"crypto/sha256"
	"fmt"
	"time"

	"blogherald/internal/models"
)

// SeenRecord is the persisted proof that one article URL was published to
// the primary channel (or claimed by a seed run).
type SeenRecord struct {
	URL         string             `json:"url"`
	Title       string             `json:"title"`
	Source      string             `json:"source"`
	ContentType models.ContentType `json:"contentType"`
	PostedAt    time.Time          `json:"postedAt"`
}

// State is a snapshot of everything remembered between runs: seen records
// keyed by article id, and the latched alert per broken source. Mutating
// helpers return a fresh copy; callers thread the latest value through a run
// and persist it once at the end.
type State struct {
	Seen    map[string]SeenRecord `json:"seen"`
	Alerted map[string]time.Time  `json:"alertedSources"`
}

func Empty() State {
	return State{
		Seen:    make(map[string]SeenRecord),
		Alerted: make(map[string]time.Time),
	}
}

// Hash derives the stable article id from a raw URL: the first 16 hex
// characters of its SHA-256. The URL is hashed exactly as discovered, with
// no trailing-slash or query normalization.
func Hash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", sum)[:16]
}

func (s State) IsSeen(url string) bool {
	_, ok := s.Seen[Hash(url)]
	return ok
}

func (s State) MarkSeen(url string, rec SeenRecord) State {
	out := s.clone()
	out.Seen[Hash(url)] = rec
	return out
}

func (s State) IsAlerted(source string) bool {
	_, ok := s.Alerted[source]
	return ok
}

func (s State) MarkAlerted(source string, at time.Time) State {
	out := s.clone()
	out.Alerted[source] = at
	return out
}

func (s State) ClearAlert(source string) State {
	if !s.IsAlerted(source) {
		return s
	}
	out := s.clone()
	delete(out.Alerted, source)
	return out
}

func (s State) clone() State {
	out := Empty()
	for k, v := range s.Seen {
		out.Seen[k] = v
	}
	for k, v := range s.Alerted {
		out.Alerted[k] = v
	}
	return out
}
