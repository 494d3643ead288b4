package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/tilawa/internal/domain"
)

func webhook(t *testing.T, status int) (*httptest.Server, chan discordWebhook) {
	t.Helper()

	received := make(chan discordWebhook, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload discordWebhook
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func TestDiscordService_SendFailure(t *testing.T) {
	srv, received := webhook(t, http.StatusNoContent)
	svc := NewService(zerolog.Nop(), srv.URL)

	err := svc.SendFailure(context.Background(), domain.FailureReport{
		Key:   domain.AyahKey("1", 6, 12),
		State: domain.StateUploading,
		Err:   domain.E(domain.KindUpload, "upload", errors.New("CHANNEL_PRIVATE")),
	})
	require.NoError(t, err)

	payload := <-received
	require.Len(t, payload.Embeds, 1)
	embed := payload.Embeds[0]
	assert.Equal(t, "Tilawa delivery failed", embed.Title)
	assert.Contains(t, embed.Description, "CHANNEL_PRIVATE")
	assert.Equal(t, []discordField{
		{Name: "Recitation", Value: "1/6:12", Inline: true},
		{Name: "Step", Value: "uploading", Inline: true},
		{Name: "Kind", Value: "upload", Inline: true},
	}, embed.Fields)
}

func TestDiscordService_SendStats(t *testing.T) {
	srv, received := webhook(t, http.StatusOK)
	svc := NewDiscordService(zerolog.Nop(), srv.URL)

	err := svc.SendStats(context.Background(), domain.Statistics{
		TotalEntries:   3,
		SurahEntries:   2,
		AyahEntries:    1,
		ActiveReciters: 5,
		PerReciter:     map[string]int{"2": 1, "1": 2},
	})
	require.NoError(t, err)

	embed := (<-received).Embeds[0]
	require.Len(t, embed.Fields, 5)
	assert.Equal(t, "3", embed.Fields[0].Value)
	assert.Equal(t, "1: 2\n2: 1", embed.Fields[4].Value)
}

func TestDiscordService_ErrorStatus(t *testing.T) {
	srv, _ := webhook(t, http.StatusTooManyRequests)
	svc := NewDiscordService(zerolog.Nop(), srv.URL)

	err := svc.SendStats(context.Background(), domain.Statistics{})
	assert.Error(t, err)
}

func TestService_NoWebhook(t *testing.T) {
	svc := NewService(zerolog.Nop(), "")

	assert.NoError(t, svc.SendFailure(context.Background(), domain.FailureReport{}))
	assert.NoError(t, svc.SendStats(context.Background(), domain.Statistics{}))
}
