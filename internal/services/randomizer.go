package services

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Game types with fixed awards
const (
	GameMath  = "math"
	GameGuess = "guess"
	GameSpin  = "spin"
)

// RandomSource yields uniform values in [0, 1)
type RandomSource interface {
	Float64() float64
}

type spinTier struct {
	Threshold float64
	Points    int
	Message   string
}

// Cumulative thresholds; the last tier catches everything at or above 0.97.
var spinTiers = []spinTier{
	{Threshold: 0.60, Points: 5, Message: "Nice! +5 points"},
	{Threshold: 0.85, Points: 15, Message: "Great! +15 points"},
	{Threshold: 0.97, Points: 50, Message: "Amazing! +50 points"},
	{Threshold: 1.00, Points: 200, Message: "JACKPOT! +200 points"},
}

// Randomizer maps a game type to a point award
type Randomizer struct {
	source RandomSource
}

// NewRandomizer creates a randomizer. A nil source uses a locked math/rand
// generator seeded from crypto/rand.
func NewRandomizer(source RandomSource) *Randomizer {
	if source == nil {
		source = newLockedSource()
	}
	return &Randomizer{source: source}
}

// Draw returns the award and message for gameType
func (r *Randomizer) Draw(gameType string) (int, string) {
	switch strings.ToLower(gameType) {
	case GameMath:
		return 20, "Smart! +20 points from Math Game"
	case GameGuess:
		return 15, "Nice Guess! +15 points"
	}

	roll := r.source.Float64()
	for _, tier := range spinTiers {
		if roll < tier.Threshold {
			return tier.Points, tier.Message
		}
	}

	last := spinTiers[len(spinTiers)-1]
	return last.Points, last.Message
}

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedSource() *lockedSource {
	var seed int64
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
