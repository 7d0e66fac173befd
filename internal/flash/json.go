package flash

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

const (
	// NoIndex marks a grid index that was never assigned.
	NoIndex = -1
	// BadIndex marks an index that was present but could not be parsed.
	BadIndex = -2
)

type envelope struct {
	Value interface{} `json:"value"`
	Unit  *string     `json:"unit"`
}

func (s *State) MarshalJSON() ([]byte, error) {
	xa, ya := s.Kind.Axes()
	out := make(map[string]interface{}, numProperties+6)
	if s.Index >= 0 {
		out["index"] = s.Index
	}
	if s.XIdx >= 0 {
		out[xa.IdxName] = s.XIdx
	}
	if s.YIdx >= 0 {
		out[ya.IdxName] = s.YIdx
	}
	for p, m := range s.values {
		if !m.Set {
			continue
		}
		unit := m.Unit
		out[Property(p).String()] = envelope{Value: m.Value, Unit: &unit}
	}
	out["phase"] = envelope{Value: s.ResolvedPhase().String()}
	if s.X != nil {
		unit := "mole fraction"
		out["x"] = envelope{Value: s.X, Unit: &unit}
	}
	if s.Y != nil {
		unit := "mole fraction"
		out["y"] = envelope{Value: s.Y, Unit: &unit}
	}
	return json.Marshal(out)
}

// DecodeResults reads results previously rendered as JSON, either a bare
// array or an object with a "results" field. Values are taken as SI and
// may be plain numbers or {"value", "unit"} envelopes.
func DecodeResults(data []byte, kind Kind) ([]*State, error) {
	data = bytes.TrimSpace(data)
	var raws []map[string]json.RawMessage
	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Results []map[string]json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("flash: decoding results: %w", err)
		}
		raws = wrapper.Results
	} else if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("flash: decoding results: %w", err)
	}

	states := make([]*State, 0, len(raws))
	for _, raw := range raws {
		states = append(states, decodeState(raw, kind))
	}
	return states, nil
}

// DecodeState reads a single JSON object in the same layout.
func DecodeState(data []byte, kind Kind) (*State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("flash: decoding state: %w", err)
	}
	if raw == nil {
		return nil, ErrNoState
	}
	return decodeState(raw, kind), nil
}

func decodeState(raw map[string]json.RawMessage, kind Kind) *State {
	xa, ya := kind.Axes()
	s := NewState(kind)
	s.Index = decodeIndex(raw, "index")
	s.XIdx = decodeIndex(raw, xa.IdxName, "x_idx")
	s.YIdx = decodeIndex(raw, ya.IdxName, "y_idx")
	for name, msg := range raw {
		if p, ok := ParseProperty(name); ok {
			if v, ok := decodeNumber(msg); ok {
				s.Set(p, v)
			}
		}
	}
	if msg, ok := raw["phase"]; ok {
		s.Phase = ParsePhase(decodeString(msg))
	}
	s.X = decodeVector(raw["x"])
	s.Y = decodeVector(raw["y"])
	return s
}

func unwrap(msg json.RawMessage) json.RawMessage {
	msg = bytes.TrimSpace(msg)
	if len(msg) > 0 && msg[0] == '{' {
		var e struct {
			Value json.RawMessage `json:"value"`
		}
		if json.Unmarshal(msg, &e) == nil {
			return e.Value
		}
	}
	return msg
}

func decodeNumber(msg json.RawMessage) (float64, bool) {
	var v *float64
	if err := json.Unmarshal(unwrap(msg), &v); err != nil || v == nil {
		return 0, false
	}
	return *v, true
}

func decodeString(msg json.RawMessage) string {
	var s string
	if err := json.Unmarshal(unwrap(msg), &s); err != nil {
		return ""
	}
	return s
}

func decodeVector(msg json.RawMessage) []float64 {
	if msg == nil {
		return nil
	}
	var v []float64
	if err := json.Unmarshal(unwrap(msg), &v); err != nil {
		return nil
	}
	return v
}

func decodeIndex(raw map[string]json.RawMessage, names ...string) int {
	for _, name := range names {
		msg, ok := raw[name]
		if !ok || string(bytes.TrimSpace(msg)) == "null" {
			continue
		}
		v, ok := decodeNumber(msg)
		if !ok || v != math.Trunc(v) {
			return BadIndex
		}
		return int(v)
	}
	return NoIndex
}
