package dialog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/hackbot/core/scenario"
)

// PayloadVersion is written into every encoded payload.
const PayloadVersion = 1

// ErrMalformedCallback reports callback data that does not decode to a known payload.
var ErrMalformedCallback = errors.New("dialog: malformed callback payload")

// PayloadKind tags the variant of a Payload on the wire.
type PayloadKind string

const (
	KindStartCategory PayloadKind = "start"
	KindRestart       PayloadKind = "restart"
	KindExploreMore   PayloadKind = "more"
)

// Payload is the continuation data attached to a menu action. All dialog
// state travels in it; the engine keeps nothing between events.
type Payload interface {
	Kind() PayloadKind
}

// StartCategory asks for a fresh scenario of Category.
type StartCategory struct {
	Category scenario.Category
}

// Restart returns to the category menu.
type Restart struct{}

// ExploreMore asks for a variation of PriorScenario.
type ExploreMore struct {
	Category      scenario.Category
	PriorScenario string
}

func (StartCategory) Kind() PayloadKind { return KindStartCategory }
func (Restart) Kind() PayloadKind       { return KindRestart }
func (ExploreMore) Kind() PayloadKind   { return KindExploreMore }

type envelope struct {
	V int         `json:"v"`
	K PayloadKind `json:"k"`
	C string      `json:"c,omitempty"`
	S string      `json:"s,omitempty"`
}

// EncodePayload serialises p into the versioned wire form.
func EncodePayload(p Payload) (string, error) {
	env := envelope{V: PayloadVersion}
	switch v := p.(type) {
	case StartCategory:
		env.K, env.C = KindStartCategory, v.Category.Value
	case Restart:
		env.K = KindRestart
	case ExploreMore:
		env.K, env.C, env.S = KindExploreMore, v.Category.Value, v.PriorScenario
	default:
		return "", fmt.Errorf("dialog: encode payload: unsupported type %T", p)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("dialog: encode payload: %w", err)
	}
	return string(data), nil
}

// DecodePayload parses raw wire data. Unknown versions, unknown kinds and
// ExploreMore without a prior scenario yield ErrMalformedCallback. Category
// values are not validated here.
func DecodePayload(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedCallback)
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCallback, err)
	}
	if env.V != PayloadVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformedCallback, env.V)
	}
	switch env.K {
	case KindStartCategory:
		return StartCategory{Category: scenario.Category{Value: env.C}}, nil
	case KindRestart:
		return Restart{}, nil
	case KindExploreMore:
		if strings.TrimSpace(env.S) == "" {
			return nil, fmt.Errorf("%w: explore without scenario", ErrMalformedCallback)
		}
		return ExploreMore{Category: scenario.Category{Value: env.C}, PriorScenario: env.S}, nil
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrMalformedCallback, env.K)
	}
}
