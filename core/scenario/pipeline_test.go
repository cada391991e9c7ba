package scenario

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/hackbot/core/infosource"
)

func fakeScenario() string {
	return "A " + gofakeit.JobTitle() + " has to " + gofakeit.Verb() + " the " + gofakeit.Noun() + " before noon."
}

type genCall struct {
	Prompt string
	Budget int
}

// stubGenerator answers prompts in order; a nil entry in fail means success.
type stubGenerator struct {
	mu      sync.Mutex
	calls   []genCall
	answers []string
	fail    []error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.calls)
	g.calls = append(g.calls, genCall{Prompt: prompt, Budget: maxTokens})
	if i < len(g.fail) && g.fail[i] != nil {
		return "", g.fail[i]
	}
	if i < len(g.answers) {
		return g.answers[i], nil
	}
	return "generated", nil
}

type stubInfo struct {
	mu     sync.Mutex
	topics []infosource.Topic
	hints  []string
	err    error
}

func (s *stubInfo) Fetch(_ context.Context, topic infosource.Topic, hint string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	s.hints = append(s.hints, hint)
	if s.err != nil {
		return "", s.err
	}
	return topic.Value + " passage", nil
}

func newPipeline(t *testing.T, gen ContentGenerator, info InfoSource, timeout time.Duration) *Pipeline {
	t.Helper()
	p, err := New(Options{Generator: gen, Info: info, CallTimeout: timeout})
	require.NoError(t, err)
	return p
}

func TestRunHappyPath(t *testing.T) {
	gen := &stubGenerator{answers: []string{" seed story \n", "comparison text", "explanation text"}}
	info := &stubInfo{}
	p := newPipeline(t, gen, info, time.Second)

	b, err := p.Run(context.Background(), CategoryDaily, "")
	require.NoError(t, err)

	want := Bundle{
		Scenario:    "seed story",
		DomainInfo:  "general passage",
		Comparison:  "comparison text",
		Hack:        "hack passage",
		Explanation: "explanation text",
	}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("bundle mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, b.Degraded())

	wantCalls := []genCall{
		{Prompt: "Generate a daily scenario related to ADHD or ASD.", Budget: BudgetScenario},
		{Prompt: "Compare how a person with and without ADHD/ASD might handle this scenario: seed story", Budget: BudgetComparison},
		{Prompt: "Explain why this hack is necessary for people with ADHD/ASD: hack passage. Compare it with the typical experience: comparison text", Budget: BudgetExplanation},
	}
	if diff := cmp.Diff(wantCalls, gen.calls); diff != "" {
		t.Fatalf("generator calls mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []infosource.Topic{infosource.TopicGeneral, infosource.TopicHack}, info.topics)
	assert.Equal(t, []string{"seed story", "seed story"}, info.hints)
}

func TestRunExploreUsesPriorScenario(t *testing.T) {
	prior := fakeScenario()
	gen := &stubGenerator{}
	p := newPipeline(t, gen, &stubInfo{}, time.Second)

	_, err := p.Run(context.Background(), CategoryWork, prior)
	require.NoError(t, err)
	require.NotEmpty(t, gen.calls)
	assert.Equal(t, "Generate a similar scenario to this, but with slight variations: "+prior, gen.calls[0].Prompt)
}

func TestRunSeedFailureStopsPipeline(t *testing.T) {
	gen := &stubGenerator{fail: []error{errors.New("quota exceeded")}}
	info := &stubInfo{}
	p := newPipeline(t, gen, info, time.Second)

	_, err := p.Run(context.Background(), CategoryWork, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.Len(t, gen.calls, 1)
	assert.Empty(t, info.topics)
}

func TestRunBlankSeedIsFailure(t *testing.T) {
	gen := &stubGenerator{answers: []string{"   "}}
	p := newPipeline(t, gen, &stubInfo{}, time.Second)

	_, err := p.Run(context.Background(), CategoryDaily, "")
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestRunAllEnrichmentFails(t *testing.T) {
	boom := errors.New("upstream down")
	gen := &stubGenerator{answers: []string{"seed"}, fail: []error{nil, boom, boom}}
	info := &stubInfo{err: boom}
	p := newPipeline(t, gen, info, time.Second)

	b, err := p.Run(context.Background(), CategoryDaily, "")
	require.NoError(t, err)

	assert.Equal(t, "seed", b.Scenario)
	assert.Equal(t, FallbackInfo, b.DomainInfo)
	assert.Equal(t, FallbackComparison, b.Comparison)
	assert.Equal(t, FallbackHack, b.Hack)
	assert.Equal(t, FallbackExplanation, b.Explanation)
	assert.Equal(t, []Step{StepDomainInfo, StepComparison, StepHack, StepExplanation}, b.Fallbacks)

	require.Len(t, gen.calls, 3)
	assert.Contains(t, gen.calls[2].Prompt, FallbackComparison)
	assert.Contains(t, gen.calls[2].Prompt, FallbackHack)
}

// blockingGenerator never answers and ignores cancellation until released.
type blockingGenerator struct {
	release chan struct{}
}

func (g *blockingGenerator) Generate(context.Context, string, int) (string, error) {
	<-g.release
	return "late", nil
}

func TestRunTimeoutBoundsUncooperativeCollaborator(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	t.Cleanup(func() { close(gen.release) })
	p := newPipeline(t, gen, &stubInfo{}, 30*time.Millisecond)

	start := time.Now()
	_, err := p.Run(context.Background(), CategoryDaily, "")
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.ErrorIs(t, err, ErrCallTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// slowInfo respects ctx and reports how long it was allowed to run.
type slowInfo struct{}

func (slowInfo) Fetch(ctx context.Context, _ infosource.Topic, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRunTimedOutEnrichmentFallsBack(t *testing.T) {
	p := newPipeline(t, &stubGenerator{}, slowInfo{}, 20*time.Millisecond)

	b, err := p.Run(context.Background(), CategoryWork, "")
	require.NoError(t, err)
	assert.Equal(t, FallbackInfo, b.DomainInfo)
	assert.Equal(t, FallbackHack, b.Hack)
}

func TestRunNeverLeavesEmptyFields(t *testing.T) {
	for i := 0; i < 20; i++ {
		fail := make([]error, 3)
		for j := 1; j < 3; j++ {
			if gofakeit.Bool() {
				fail[j] = errors.New("flaky")
			}
		}
		var infoErr error
		if gofakeit.Bool() {
			infoErr = errors.New("flaky")
		}
		gen := &stubGenerator{answers: []string{fakeScenario(), "", fakeScenario()}, fail: fail}
		p := newPipeline(t, gen, &stubInfo{err: infoErr}, time.Second)

		b, err := p.Run(context.Background(), CategoryDaily, "")
		require.NoError(t, err)
		for _, field := range []string{b.Scenario, b.DomainInfo, b.Comparison, b.Hack, b.Explanation} {
			assert.NotEmpty(t, strings.TrimSpace(field))
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Info: &stubInfo{}})
	assert.Error(t, err)
	_, err = New(Options{Generator: &stubGenerator{}})
	assert.Error(t, err)

	p, err := New(Options{Generator: &stubGenerator{}, Info: &stubInfo{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultCallTimeout, p.timeout)
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("work")
	require.True(t, ok)
	assert.Equal(t, CategoryWork, c)
	assert.True(t, c.Valid())

	_, ok = ParseCategory("weekend")
	assert.False(t, ok)
	assert.False(t, Category{"weekend"}.Valid())
}
