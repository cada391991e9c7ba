package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/hackbot/core/scenario"
)

const keyword = "/start"

type runCall struct {
	Category scenario.Category
	Prior    string
}

type fakePipeline struct {
	mu     sync.Mutex
	calls  []runCall
	bundle func(scenario.Category, string) scenario.Bundle
	err    error
	panics bool
}

func (f *fakePipeline) Run(_ context.Context, c scenario.Category, prior string) (scenario.Bundle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runCall{Category: c, Prior: prior})
	f.mu.Unlock()
	if f.panics {
		panic("pipeline exploded")
	}
	if f.err != nil {
		return scenario.Bundle{}, f.err
	}
	if f.bundle != nil {
		return f.bundle(c, prior), nil
	}
	return scenario.Bundle{
		Scenario:    "scenario for " + c.Value,
		DomainInfo:  "info",
		Comparison:  "comparison",
		Hack:        "hack",
		Explanation: "explanation",
	}, nil
}

func newEngine(t *testing.T, p Pipeline) *Engine {
	t.Helper()
	e, err := NewEngine(Options{Pipeline: p, StartKeyword: keyword})
	require.NoError(t, err)
	return e
}

func encode(t *testing.T, p Payload) string {
	t.Helper()
	raw, err := EncodePayload(p)
	require.NoError(t, err)
	return raw
}

func TestKeywordShowsCategoryMenu(t *testing.T) {
	p := &fakePipeline{}
	turn := newEngine(t, p).Handle(context.Background(), TextEvent{ReplyToken: "42", Text: keyword})

	require.Len(t, turn.Messages, 1)
	menu := turn.Menu()
	require.NotNil(t, menu)
	assert.Equal(t, CategoryMenuTitle, menu.Title)
	want := []Action{
		{Label: "Daily life", Payload: StartCategory{Category: scenario.CategoryDaily}},
		{Label: "Work", Payload: StartCategory{Category: scenario.CategoryWork}},
	}
	if diff := cmp.Diff(want, menu.Actions); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "42", turn.ReplyToken)
	assert.Equal(t, StateAwaitingCategory, turn.State)
	assert.Empty(t, p.calls)
}

func TestKeywordIgnoresSurroundingWhitespace(t *testing.T) {
	e := newEngine(t, &fakePipeline{})
	for _, text := range []string{" /start", "/start ", "\t/start\n"} {
		turn := e.Handle(context.Background(), TextEvent{ReplyToken: "42", Text: text})
		menu := turn.Menu()
		require.NotNil(t, menu, "text %q", text)
		assert.Equal(t, CategoryMenuTitle, menu.Title)
		assert.Equal(t, StateAwaitingCategory, turn.State)
	}
}

func TestOtherTextGetsSingleInstruction(t *testing.T) {
	p := &fakePipeline{}
	e := newEngine(t, p)

	texts := []string{"", "hello", "start", "/start now", "/START", "/ start"}
	for i := 0; i < 20; i++ {
		texts = append(texts, gofakeit.Noun()+" "+gofakeit.Verb())
	}
	for _, text := range texts {
		turn := e.Handle(context.Background(), TextEvent{ReplyToken: "7", Text: text})
		require.Len(t, turn.Messages, 1, "text %q", text)
		assert.Nil(t, turn.Messages[0].Menu, "text %q", text)
		assert.Equal(t, InstructionText(keyword), turn.Messages[0].Text)
		assert.Equal(t, StateIdle, turn.State)
	}
	assert.Empty(t, p.calls)
}

func TestStartCategoryPresentsBundle(t *testing.T) {
	p := &fakePipeline{}
	turn := newEngine(t, p).Handle(context.Background(), CallbackEvent{
		ReplyToken: "42",
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
		"Scenario: scenario for daily",
		"ADHD/ASD info: info",
		"Typical approach: comparison",
		"ADHD/ASD hack: hack",
		"Explanation: explanation",
	}, texts)

	menu := turn.Menu()
	require.NotNil(t, menu)
	want := []Action{
		{Label: LabelRestart, Payload: Restart{}},
		{Label: LabelExplore, Payload: ExploreMore{Category: scenario.CategoryDaily, PriorScenario: "scenario for daily"}},
	}
	if diff := cmp.Diff(want, menu.Actions); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StateScenarioShown, turn.State)
	assert.Equal(t, []runCall{{Category: scenario.CategoryDaily}}, p.calls)
}

func TestExploreMoreCarriesPriorScenario(t *testing.T) {
	p := &fakePipeline{bundle: func(c scenario.Category, prior string) scenario.Bundle {
		return scenario.Bundle{Scenario: "variation of " + prior, DomainInfo: "i", Comparison: "c", Hack: "h", Explanation: "e"}
	}}
	prior := fmt.Sprintf("%s forgets the %s", gofakeit.JobTitle(), gofakeit.Noun())

	turn := newEngine(t, p).Handle(context.Background(), CallbackEvent{
		ReplyToken: "1",
		Data:       encode(t, ExploreMore{Category: scenario.CategoryWork, PriorScenario: prior}),
	})

	require.Equal(t, []runCall{{Category: scenario.CategoryWork, Prior: prior}}, p.calls)
	require.Len(t, turn.Messages, 6)
	explore := turn.Menu().Actions[1].Payload
	assert.Equal(t, ExploreMore{Category: scenario.CategoryWork, PriorScenario: "variation of " + prior}, explore)
}

func TestRestartAndMalformedShowCategoryMenu(t *testing.T) {
	p := &fakePipeline{}
	e := newEngine(t, p)

	for _, data := range []string{encode(t, Restart{}), "", "garbage", `{"v":9,"k":"start","c":"daily"}`, "ref:missing"} {
		turn := e.Handle(context.Background(), CallbackEvent{ReplyToken: "5", Data: data})
		require.Len(t, turn.Messages, 1, "data %q", data)
		menu := turn.Menu()
		require.NotNil(t, menu, "data %q", data)
		assert.Equal(t, CategoryMenuTitle, menu.Title)
		assert.NoError(t, turn.Err)
	}
	assert.Empty(t, p.calls)
}

func TestInvalidCategoryGetsNoticeAndMenu(t *testing.T) {
	p := &fakePipeline{}
	turn := newEngine(t, p).Handle(context.Background(), CallbackEvent{
		ReplyToken: "5",
		Data:       `{"v":1,"k":"start","c":"weekend"}`,
	})

	require.Len(t, turn.Messages, 2)
	assert.Equal(t, InvalidCategoryText, turn.Messages[0].Text)
	require.NotNil(t, turn.Menu())
	assert.Equal(t, CategoryMenuTitle, turn.Menu().Title)
	assert.Empty(t, p.calls)
}

func TestSeedFailureApologises(t *testing.T) {
	p := &fakePipeline{err: fmt.Errorf("%w: quota", scenario.ErrGenerationUnavailable)}
	turn := newEngine(t, p).Handle(context.Background(), CallbackEvent{
		ReplyToken: "5",
		Data:       encode(t, StartCategory{Category: scenario.CategoryWork}),
	})

	require.Len(t, turn.Messages, 2)
	assert.Equal(t, ApologyText, turn.Messages[0].Text)
	require.NotNil(t, turn.Menu())
	assert.Equal(t, CategoryMenuTitle, turn.Menu().Title)
	assert.True(t, errors.Is(turn.Err, scenario.ErrGenerationUnavailable))
}

func TestPipelinePanicIsContained(t *testing.T) {
	turn := newEngine(t, &fakePipeline{panics: true}).Handle(context.Background(), CallbackEvent{
		ReplyToken: "9",
		Data:       encode(t, StartCategory{Category: scenario.CategoryDaily}),
	})
	require.NotNil(t, turn.Menu())
	assert.Equal(t, "9", turn.ReplyToken)
}

func TestNilEventShowsMenu(t *testing.T) {
	turn := newEngine(t, &fakePipeline{}).Handle(context.Background(), nil)
	require.NotNil(t, turn.Menu())
}

func TestNewEngineValidates(t *testing.T) {
	_, err := NewEngine(Options{StartKeyword: keyword})
	assert.Error(t, err)
	_, err = NewEngine(Options{Pipeline: &fakePipeline{}})
	assert.Error(t, err)
}

func TestEngineIsStateless(t *testing.T) {
	p := &fakePipeline{}
	e := newEngine(t, p)
	data := encode(t, StartCategory{Category: scenario.CategoryWork})

	var wg sync.WaitGroup
	turns := make([]Turn, 16)
	for i := range turns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			turns[i] = e.Handle(context.Background(), CallbackEvent{ReplyToken: fmt.Sprint(i), Data: data})
		}(i)
	}
	wg.Wait()

	for i, turn := range turns {
		assert.Equal(t, fmt.Sprint(i), turn.ReplyToken)
		assert.Len(t, turn.Messages, 6)
	}
}
