package curve

import (
	"math"
	"slices"
	"sync"
)

// TimedString is one persisted keyframe of a string curve.
type TimedString struct {
	Time float64 `toml:"time" json:"time"`
	Text string  `toml:"text" json:"text"`
}

// StringAnimation interns the strings keyed on a string curve. The curve
// stores ordinals and the table maps them back to text, so moving keyframes
// in time never detaches them from their payload.
//
// StringAnimation is safe for concurrent use.
type StringAnimation struct {
	mu       sync.RWMutex
	ordinals map[string]int
	texts    []string
}

// NewStringAnimation returns an empty table.
func NewStringAnimation() *StringAnimation {
	return &StringAnimation{ordinals: make(map[string]int)}
}

// Ordinal interns text and returns its ordinal.
func (s *StringAnimation) Ordinal(text string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.ordinals[text]; ok {
		return float64(i)
	}
	i := len(s.texts)
	s.texts = append(s.texts, text)
	s.ordinals[text] = i
	return float64(i)
}

// InsertKeyFrame keys text on c at time t.
func (s *StringAnimation) InsertKeyFrame(c *Curve, t float64, text string) SetKeyResult {
	return c.SetOrAddKeyFrame(KeyFrame{Time: t, Value: s.Ordinal(text), Interp: Constant})
}

// StringFromInterpolatedIndex returns the text for an ordinal produced by
// evaluating a string curve.
func (s *StringAnimation) StringFromInterpolatedIndex(v float64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := int(math.Round(v))
	if i < 0 || i >= len(s.texts) {
		return "", false
	}
	return s.texts[i], true
}

// StringAt evaluates c at t and returns the keyed text.
func (s *StringAnimation) StringAt(c *Curve, t float64) (string, bool) {
	if !c.IsAnimated() {
		return "", false
	}
	return s.StringFromInterpolatedIndex(c.ValueAt(t))
}

// Save returns the (time, text) pairs keyed on c in time order.
func (s *StringAnimation) Save(c *Curve) []TimedString {
	keys := c.KeyFrames()
	out := make([]TimedString, 0, len(keys))
	for _, k := range keys {
		if text, ok := s.StringFromInterpolatedIndex(k.Value); ok {
			out = append(out, TimedString{Time: k.Time, Text: text})
		}
	}
	return out
}

// Load replaces the keyframes of c with entries.
func (s *StringAnimation) Load(c *Curve, entries []TimedString) {
	c.Clear()
	keys := make([]KeyFrame, len(entries))
	for i, e := range entries {
		keys[i] = KeyFrame{Time: e.Time, Value: s.Ordinal(e.Text), Interp: Constant}
	}
	c.SetOrAddKeyFrames(keys)
}

// Clone returns an independent copy of the table. Ordinals are preserved.
func (s *StringAnimation) Clone() *StringAnimation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &StringAnimation{
		ordinals: make(map[string]int, len(s.ordinals)),
		texts:    slices.Clone(s.texts),
	}
	for k, v := range s.ordinals {
		out.ordinals[k] = v
	}
	return out
}
