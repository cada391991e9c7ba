package dialog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/hackbot/core/infosource"
	"github.com/m3rciful/hackbot/core/scenario"
)

// seedOnlyGenerator answers the first prompt and fails every later one.
type seedOnlyGenerator struct {
	mu    sync.Mutex
	seed  string
	err   error
	calls int
}

func (g *seedOnlyGenerator) Generate(context.Context, string, int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls == 1 && g.seed != "" {
		return g.seed, nil
	}
	return "", g.err
}

type failingInfo struct {
	mu    sync.Mutex
	calls int
}

func (f *failingInfo) Fetch(context.Context, infosource.Topic, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "", errors.New("lookup failed")
}

func newPipelineEngine(t *testing.T, gen scenario.ContentGenerator, info scenario.InfoSource) *Engine {
	t.Helper()
	p, err := scenario.New(scenario.Options{Generator: gen, Info: info, CallTimeout: time.Second})
	require.NoError(t, err)
	return newEngine(t, p)
}

func TestEngineWithPipelineDegradesEnrichment(t *testing.T) {
	gen := &seedOnlyGenerator{seed: "Mia misses the bus.", err: errors.New("upstream 503")}
	info := &failingInfo{}
	turn := newPipelineEngine(t, gen, info).Handle(context.Background(), CallbackEvent{
		ReplyToken: "3",
		Data:       encode(t, StartCategory{Category: scenario.CategoryDaily}),
	})

	require.NoError(t, turn.Err)
	require.Len(t, turn.Messages, 6)
	texts := make([]string, 0, 5)
	for _, m := range turn.Messages[:5] {
		require.Nil(t, m.Menu)
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{
		PrefixScenario + "Mia misses the bus.",
		PrefixInfo + scenario.FallbackInfo,
		PrefixComparison + scenario.FallbackComparison,
		PrefixHack + scenario.FallbackHack,
		PrefixExplanation + scenario.FallbackExplanation,
	}, texts)
	require.NotNil(t, turn.Menu())
	assert.Equal(t, StateScenarioShown, turn.State)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, 2, info.calls)
}

func TestEngineWithPipelineSeedFailureSkipsEnrichment(t *testing.T) {
	gen := &seedOnlyGenerator{err: errors.New("quota exceeded")}
	info := &failingInfo{}
	turn := newPipelineEngine(t, gen, info).Handle(context.Background(), CallbackEvent{
		ReplyToken: "3",
		Data:       encode(t, StartCategory{Category: scenario.CategoryWork}),
	})

	require.Len(t, turn.Messages, 2)
	assert.Equal(t, ApologyText, turn.Messages[0].Text)
	require.NotNil(t, turn.Menu())
	assert.Equal(t, CategoryMenuTitle, turn.Menu().Title)
	assert.ErrorIs(t, turn.Err, scenario.ErrGenerationUnavailable)
	assert.Equal(t, 1, gen.calls)
	assert.Zero(t, info.calls)
}
