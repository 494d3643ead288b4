package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
)

// discord rejects field values longer than this
const maxFieldValue = 1024

// DiscordService implements NotificationService for Discord webhooks
type DiscordService struct {
	log        zerolog.Logger
	webhookURL string
	httpClient *http.Client
}

// NewDiscordService creates a new Discord notification service
func NewDiscordService(log zerolog.Logger, webhookURL string) *DiscordService {
	return &DiscordService{
		log:        log.With().Str("module", "notification").Str("type", "discord").Logger(),
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendFailure reports a delivery that failed in a way an operator has to look at
func (s *DiscordService) SendFailure(ctx context.Context, report domain.FailureReport) error {
	if s.webhookURL == "" {
		return nil
	}

	errText := "unknown error"
	if report.Err != nil {
		errText = report.Err.Error()
	}

	embed := discordEmbed{
		Title:       "Tilawa delivery failed",
		Description: fmt.Sprintf("```%s```", truncate(errText, 4000)),
		Color:       0xff0000, // Red
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []discordField{
			{
				Name:   "Recitation",
				Value:  report.Key.String(),
				Inline: true,
			},
			{
				Name:   "Step",
				Value:  string(report.State),
				Inline: true,
			},
			{
				Name:   "Kind",
				Value:  orDash(string(domain.KindOf(report.Err))),
				Inline: true,
			},
		},
	}

	return s.sendWebhook(ctx, discordWebhook{Embeds: []discordEmbed{embed}})
}

// SendStats sends cache statistics
func (s *DiscordService) SendStats(ctx context.Context, stats domain.Statistics) error {
	if s.webhookURL == "" {
		return nil
	}

	embed := discordEmbed{
		Title:     "Tilawa cache statistics",
		Color:     0x00ff00, // Green
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []discordField{
			{
				Name:   "Cached recitations",
				Value:  fmt.Sprintf("%d", stats.TotalEntries),
				Inline: true,
			},
			{
				Name:   "Surahs",
				Value:  fmt.Sprintf("%d", stats.SurahEntries),
				Inline: true,
			},
			{
				Name:   "Ayahs",
				Value:  fmt.Sprintf("%d", stats.AyahEntries),
				Inline: true,
			},
			{
				Name:   "Active reciters",
				Value:  fmt.Sprintf("%d", stats.ActiveReciters),
				Inline: true,
			},
			{
				Name:   "Per reciter",
				Value:  truncate(perReciter(stats.PerReciter), maxFieldValue),
				Inline: false,
			},
		},
	}

	return s.sendWebhook(ctx, discordWebhook{Embeds: []discordEmbed{embed}})
}

// sendWebhook sends a webhook payload to Discord
func (s *DiscordService) sendWebhook(ctx context.Context, payload discordWebhook) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to create webhook request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send webhook request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	s.log.Debug().Msg("Discord notification sent successfully")
	return nil
}

func perReciter(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&sb, "%s: %d\n", id, counts[id])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// discordWebhook represents a Discord webhook payload
type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

// discordEmbed represents a Discord embed
type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
}

// discordField represents a Discord embed field
type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}
