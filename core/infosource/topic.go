package infosource

import (
	"errors"

	"github.com/orsinium-labs/enum"
)

// Topic selects which passage of the source page to extract.
type Topic enum.Member[string]

var (
	TopicGeneral = Topic{"general"}
	TopicHack    = Topic{"hack"}

	Topics = enum.New(TopicGeneral, TopicHack)
)

// ErrRetrieval wraps every failure to produce a passage: transport errors,
// non-2xx pages, and pages where the topic's node is absent.
var ErrRetrieval = errors.New("infosource: retrieval failed")

// SelectorReader makes a topic fall back to reader-mode extraction of the
// whole page instead of a CSS selector.
const SelectorReader = "reader"
