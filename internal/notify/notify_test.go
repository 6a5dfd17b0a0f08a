package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

type recordSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFilters(t *testing.T) {
	s := &recordSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventDeployFailed, " "}, discard())
	ctx := context.Background()

	require.NoError(t, n.DeploymentSucceeded(ctx, domain.DeploymentRecord{ContractAddress: "0x1"}))
	require.NoError(t, n.DeploymentFailed(ctx, "0xabc", errors.New("boom")))
	n.PublishTx(ctx, domain.TxEvent{Function: "place_bet"})

	assert.Equal(t, []string{"Deployment failed"}, s.titles)
}

func TestNotifierAllowsAllWhenUnfiltered(t *testing.T) {
	s := &recordSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, discard())
	n.PublishTx(context.Background(), domain.TxEvent{Function: "place_bet"})
	assert.Equal(t, []string{"Transaction submitted"}, s.titles)
	assert.True(t, n.Enabled())
	assert.False(t, NewNotifier(nil, nil, discard()).Enabled())
}

func TestNotifierCollectsSenderErrors(t *testing.T) {
	bad := &recordSender{name: "bad", err: errors.New("down")}
	good := &recordSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventDeploySucceeded, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	d.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, d.Send(context.Background(), "Deployment failed", "Error: boom"))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "genmarket", got.Username)
	assert.Equal(t, discordEmbed{
		Title:       "Deployment failed",
		Description: "Error: boom",
		Color:       discordColorFail,
		Timestamp:   "2025-03-01T12:00:00Z",
	}, got.Embeds[0])

	require.NoError(t, d.Send(context.Background(), "Deployment succeeded", "ok"))
	assert.Equal(t, discordColorOK, got.Embeds[0].Color)
}

func TestTelegramSender(t *testing.T) {
	var path string
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.baseURL = srv.URL
	err := s.Send(context.Background(), "T", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*T*\nm", got["text"])
}
