package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/hackbot/core/dialog"
	"github.com/m3rciful/hackbot/core/scenario"
	"github.com/m3rciful/hackbot/core/stash"
	"github.com/m3rciful/hackbot/core/telegram/callbacks"
	"github.com/m3rciful/hackbot/core/telegram/sender"
)

type sentMessage struct {
	to     string
	text   string
	markup *tele.ReplyMarkup
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failAt  int
	failErr error
	calls   int
	delay   time.Duration
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failErr != nil && f.calls == f.failAt {
		return nil, f.failErr
	}
	msg := sentMessage{to: to.Recipient(), text: what.(string)}
	for _, o := range opts {
		if m, ok := o.(*tele.ReplyMarkup); ok {
			msg.markup = m
		}
	}
	f.sent = append(f.sent, msg)
	return &tele.Message{}, nil
}

func (f *fakeSender) snapshot() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func scenarioTurn(token string) dialog.Turn {
	b := scenario.Bundle{
		Scenario:    strings.Repeat("A long scenario. ", 10),
		DomainInfo:  "info",
		Comparison:  "comparison",
		Hack:        "hack",
		Explanation: "explanation",
	}
	menu := dialog.NextMenu(scenario.CategoryDaily, b.Scenario)
	msgs := append(dialog.BundleMessages(b), dialog.Message{Menu: &menu})
	return dialog.Turn{ReplyToken: token, Messages: msgs, State: dialog.StateScenarioShown}
}

func TestDeliverSendsInOrderSynchronously(t *testing.T) {
	bot := &fakeSender{}
	packer := callbacks.NewPacker(stash.NewMemory(time.Minute))
	d := NewDeliverer(bot, nil, packer.Pack)

	require.NoError(t, d.Deliver(context.Background(), scenarioTurn("1001")))

	sent := bot.snapshot()
	require.Len(t, sent, 6)
	for _, m := range sent {
		assert.Equal(t, "1001", m.to)
	}
	assert.True(t, strings.HasPrefix(sent[0].text, dialog.PrefixScenario))
	assert.True(t, strings.HasPrefix(sent[4].text, dialog.PrefixExplanation))
	require.NotNil(t, sent[5].markup)
	explore := sent[5].markup.InlineKeyboard[1][0].Data
	assert.True(t, strings.HasPrefix(explore, callbacks.RefPrefix), "long explore payload should be stashed")
	assert.LessOrEqual(t, len(explore), callbacks.MaxDataLen)

	raw, err := packer.Unpack(context.Background(), explore)
	require.NoError(t, err)
	p, err := dialog.DecodePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, dialog.KindExploreMore, p.Kind())
}

func TestDeliverThroughDispatcherRetriesWithoutDuplicates(t *testing.T) {
	bot := &fakeSender{failAt: 3, failErr: timeoutErr{}}
	disp := sender.NewDispatcher(sender.Options{Workers: 4, MaxRetries: 2, RetryBackoff: time.Millisecond})
	d := NewDeliverer(bot, disp, callbacks.NewPacker(stash.NewMemory(time.Minute)).Pack)

	require.NoError(t, d.Deliver(context.Background(), scenarioTurn("7")))
	disp.Close()

	sent := bot.snapshot()
	require.Len(t, sent, 6)
	texts := make([]string, 0, 5)
	for _, m := range sent[:5] {
		texts = append(texts, strings.SplitN(m.text, ":", 2)[0])
	}
	assert.Equal(t, []string{"Scenario", "ADHD/ASD info", "Typical approach", "ADHD/ASD hack", "Explanation"}, texts)
}

func TestDeliverKeepsTurnOrderWithinChat(t *testing.T) {
	bot := &fakeSender{delay: 20 * time.Millisecond}
	disp := sender.NewDispatcher(sender.Options{})
	d := NewDeliverer(bot, disp, nil)

	first := dialog.Turn{ReplyToken: "1"}
	for _, text := range []string{"A1", "A2", "A3", "A4", "A5"} {
		first.Messages = append(first.Messages, dialog.Message{Text: text})
	}
	second := dialog.Turn{ReplyToken: "1", Messages: []dialog.Message{{Text: "B"}}}

	require.NoError(t, d.Deliver(context.Background(), first))
	require.NoError(t, d.Deliver(context.Background(), second))
	disp.Close()

	var texts []string
	for _, m := range bot.snapshot() {
		texts = append(texts, m.text)
	}
	assert.Equal(t, []string{"A1", "A2", "A3", "A4", "A5", "B"}, texts)
}

func TestDeliverBadToken(t *testing.T) {
	d := NewDeliverer(&fakeSender{}, nil, nil)
	err := d.Deliver(context.Background(), dialog.Turn{ReplyToken: "not-a-chat", Messages: []dialog.Message{{Text: "x"}}})
	assert.Error(t, err)
}

func TestDeliverSendError(t *testing.T) {
	boom := errors.New("forbidden")
	d := NewDeliverer(&fakeSender{failAt: 1, failErr: boom}, nil, nil)
	err := d.Deliver(context.Background(), dialog.Turn{ReplyToken: "5", Messages: []dialog.Message{{Text: "x"}}})
	assert.ErrorIs(t, err, boom)
}

// timeoutErr is a net.Error that the dispatcher treats as retryable.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
