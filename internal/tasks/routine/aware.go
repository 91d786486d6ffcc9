package routine

import (
	"context"
	"encoding/json"
	"time"

	"illo/internal/hardware"
	"illo/internal/storage"
	logx "illo/pkg/logx"
)

// aware is the attentive default routine. Taps and shakes feed an energy
// level that decays over time; the ring shimmers wider and brighter the more
// the toy has been played with, and the mood it settles into is persisted so
// it survives power cycles.
type aware struct {
	s     *shared
	store storage.Store
	log   logx.Logger

	mood string
	rng  uint64
	last time.Time
}

// awareState is the persisted slice of the routine's memory.
type awareState struct {
	Taps   uint64  `json:"taps"`
	Shakes uint64  `json:"shakes"`
	Energy float64 `json:"energy"`
	Mood   string  `json:"mood,omitempty"`
}

const (
	awareStateKey    = "aware"
	awareEnergyHalf  = 20 * time.Second
	awareCalmCeil    = 0.3
	awareCuriousCeil = 0.7
)

func (a *aware) Start(now time.Time) error {
	a.last = now
	a.rng = 0x9E3779B97F4A7C15
	a.mood = "calm"
	if a.store != nil {
		if raw, ok, err := a.store.GetState(context.Background(), awareStateKey); err != nil {
			a.log.Warn("failed to load aware state", logx.Err(err))
		} else if ok {
			var st awareState
			if err := json.Unmarshal(raw, &st); err == nil {
				a.s.taps, a.s.shakes = st.Taps, st.Shakes
				a.s.energy = st.Energy
				if st.Mood != "" {
					a.mood = st.Mood
				}
			}
		}
	}
	a.s.frame.Fill(hardware.RGB{})
	return a.s.show()
}

func (a *aware) Stop(now time.Time) error {
	if a.store != nil {
		raw, err := json.Marshal(awareState{
			Taps: a.s.taps, Shakes: a.s.shakes, Energy: a.s.energy, Mood: a.mood,
		})
		if err == nil {
			if err := a.store.PutState(context.Background(), awareStateKey, raw); err != nil {
				a.log.Warn("failed to save aware state", logx.Err(err))
			}
		}
	}
	return a.s.deps.Ring.Clear()
}

func (a *aware) Step(now time.Time) error {
	a.s.adaptBrightness()
	a.decay(now)
	a.updateMood()

	n := len(a.s.frame)
	a.s.frame.Fill(hardware.RGB{})

	// Base glow scales with energy; on top, a few shimmer pixels.
	base := hardware.Wheel(a.s.mode, 60+int(a.s.energy*120))
	glow := base
	for ch := 0; ch < 3; ch++ {
		glow[ch] = uint8(float64(glow[ch]) * (0.15 + 0.35*a.s.energy))
	}
	a.s.frame.Fill(glow)

	shimmers := 1 + int(a.s.energy*float64(n-1)/2)
	for i := 0; i < shimmers; i++ {
		pos := int(a.next() % uint64(n))
		bright := 120 + int(a.next()%uint64(100))
		a.s.frame[pos] = hardware.Wheel(a.s.mode, bright)
	}
	return a.s.show()
}

func (a *aware) decay(now time.Time) {
	dt := now.Sub(a.last)
	a.last = now
	if dt <= 0 || a.s.energy <= 0 {
		return
	}
	// Exponential decay with a fixed half-life, cheap linear approximation
	// per frame is fine at these energies.
	a.s.energy *= 1 - 0.693*float64(dt)/float64(awareEnergyHalf)
	if a.s.energy < 0 {
		a.s.energy = 0
	}
}

func (a *aware) updateMood() {
	var mood string
	switch {
	case a.s.energy < awareCalmCeil:
		mood = "calm"
	case a.s.energy < awareCuriousCeil:
		mood = "curious"
	default:
		mood = "excited"
	}
	if mood != a.mood {
		a.log.Info("mood changed",
			logx.String("from", a.mood), logx.String("to", mood),
			logx.Float64("energy", a.s.energy))
		a.mood = mood
	}
}

// next is a splitmix64 step, deterministic shimmer without pulling in a
// seeded rand source.
func (a *aware) next() uint64 {
	a.rng += 0x9E3779B97F4A7C15
	z := a.rng
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
