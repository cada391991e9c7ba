package dialog

import "github.com/m3rciful/hackbot/core/scenario"

// Event is an inbound user interaction already stripped of channel details.
type Event interface {
	Token() string
}

// TextEvent is free text typed by the user.
type TextEvent struct {
	ReplyToken string
	Text       string
}

// CallbackEvent is a menu button press carrying raw payload data.
type CallbackEvent struct {
	ReplyToken string
	Data       string
}

func (e TextEvent) Token() string     { return e.ReplyToken }
func (e CallbackEvent) Token() string { return e.ReplyToken }

// State is where the conversation stands after a turn.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingCategory State = "awaiting_category"
	StateCategoryChosen   State = "category_chosen"
	StateScenarioShown    State = "scenario_shown"
)

// Action is one menu button.
type Action struct {
	Label   string
	Payload Payload
}

// Menu is a titled prompt with actions.
type Menu struct {
	Title   string
	Text    string
	Actions []Action
}

// Message is either plain text or, when Menu is set, a menu.
type Message struct {
	Text string
	Menu *Menu
}

// Turn is the ordered reply to one event. A menu, if any, is the last message.
type Turn struct {
	ReplyToken string
	Messages   []Message
	State      State
	// Category is set for turns that ran the scenario pipeline.
	Category scenario.Category
	// Err is scenario.ErrGenerationUnavailable when the seed step failed and
	// the turn is an apology; nil otherwise.
	Err error
}

// Menu returns the trailing menu of the turn, or nil.
func (t Turn) Menu() *Menu {
	if len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[len(t.Messages)-1].Menu
}
