package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"novaflow/internal/model"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordNotifier) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func protectionFailed() model.WorkflowOutcome {
	return model.WorkflowOutcome{
		Status: model.OutcomeSuccess,
		Reason: model.ReasonProtectionFailed,
		Details: &model.OutcomeDetails{
			Quantity:         decimal.RequireFromString("0.02"),
			StopPrice:        decimal.RequireFromString("49000"),
			ProtectionFailed: true,
		},
	}
}

func TestNeedsAttention(t *testing.T) {
	tests := []struct {
		name string
		o    model.WorkflowOutcome
		want bool
	}{
		{"success", model.WorkflowOutcome{Status: model.OutcomeSuccess, Reason: model.ReasonFilled, Details: &model.OutcomeDetails{}}, false},
		{"skipped", model.WorkflowOutcome{Status: model.OutcomeSkipped, Reason: model.ReasonInsufficientSize}, false},
		{"protection", protectionFailed(), true},
		{"unconfirmed", model.WorkflowOutcome{Status: model.OutcomeFailed, Reason: model.ReasonExecutionUnconfirmed}, true},
		{"error", model.WorkflowOutcome{Status: model.OutcomeError, Reason: model.ReasonInternalError}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsAttention(tt.o))
		})
	}
}

func TestMulti_FanOutCombinesErrors(t *testing.T) {
	a := &recordNotifier{}
	b := &recordNotifier{err: errors.New("b down")}
	c := &recordNotifier{err: errors.New("c down")}

	err := Multi{a, b, c}.Notify(context.Background(), Event{Symbol: "PF_XBTUSD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b down")
	assert.Contains(t, err.Error(), "c down")
	for _, n := range []*recordNotifier{a, b, c} {
		assert.Len(t, n.events, 1)
	}
}

type fakeProducer struct {
	key, value []byte
}

func (f *fakeProducer) Produce(_ context.Context, key, value []byte) error {
	f.key, f.value = key, value
	return nil
}

func (f *fakeProducer) Close() {}

func TestKafka_EncodesEvent(t *testing.T) {
	p := &fakeProducer{}
	err := NewKafka(p).Notify(context.Background(), Event{RequestID: "r1", Symbol: "PF_XBTUSD", Outcome: protectionFailed()})
	require.NoError(t, err)
	assert.Equal(t, "PF_XBTUSD", string(p.key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(p.value, &got))
	assert.Equal(t, "r1", got["request_id"])
	outcome := got["outcome"].(map[string]any)
	assert.Equal(t, "success", outcome["status"])
	assert.Equal(t, true, outcome["details"].(map[string]any)["protection_failed"])
}

func TestTelegram_OnlyAttentionEvents(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"novaflow","username":"novaflow_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			body, _ := io.ReadAll(r.Body)
			form, _ := url.ParseQuery(string(body))
			mu.Lock()
			sent = append(sent, form.Get("text"))
			mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tg, err := NewTelegramWithEndpoint("token", srv.URL+"/bot%s/%s", 42)
	require.NoError(t, err)

	ok := model.WorkflowOutcome{Status: model.OutcomeSuccess, Reason: model.ReasonFilled, Details: &model.OutcomeDetails{}}
	require.NoError(t, tg.Notify(context.Background(), Event{Symbol: "PF_XBTUSD", Outcome: ok}))
	require.NoError(t, tg.Notify(context.Background(), Event{Symbol: "PF_XBTUSD", RequestID: "r2", Outcome: protectionFailed()}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "WITHOUT a stop loss")
	assert.Contains(t, sent[0], "r2")
}
