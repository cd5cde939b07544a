package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// Embed colours by event family.
const (
	colourListing = 0x5865F2
	colourHold    = 0x3498DB
	colourBook    = 0xF1C40F
	colourSale    = 0x2ECC71
	colourEnded   = 0xE74C3C
)

// DiscordSender posts market events to a Discord webhook as embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL with a
// 10-second HTTP timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Content  string         `json:"content,omitempty"`
	Embeds   []discordEmbed `json:"embeds,omitempty"`
}

// SendEvent posts evt as a single embed with one field per populated
// attribute.
func (d *DiscordSender) SendEvent(ctx context.Context, evt domain.Event) error {
	title, _ := Format(evt)
	return d.post(ctx, discordPayload{
		Username: "collectd",
		Embeds:   []discordEmbed{eventEmbed(title, evt)},
	})
}

// Send posts a plain message. The title is rendered in bold.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	return d.post(ctx, discordPayload{
		Username: "collectd",
		Content:  fmt.Sprintf("**%s**\n%s", title, message),
	})
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

func eventEmbed(title string, evt domain.Event) discordEmbed {
	fields := []discordField{
		{Name: "Event", Value: string(evt.Type), Inline: true},
		{Name: "Product", Value: evt.ProductID, Inline: true},
	}
	if evt.Status != "" {
		fields = append(fields, discordField{Name: "Status", Value: string(evt.Status), Inline: true})
	}
	switch {
	case evt.Order != nil:
		fields = append(fields,
			discordField{Name: "Amount", Value: evt.Order.Amount.StringFixed(domain.AmountScale), Inline: true},
			discordField{Name: "Order", Value: fmt.Sprintf("%s (%s)", evt.Order.ID, evt.Order.Status), Inline: true},
		)
	case evt.Amount != nil:
		fields = append(fields, discordField{Name: "Amount", Value: evt.Amount.StringFixed(domain.AmountScale), Inline: true})
	}
	if q := evt.Quote; q != nil {
		if q.HighestBid != nil {
			fields = append(fields, discordField{Name: "Highest bid", Value: q.HighestBid.StringFixed(domain.AmountScale), Inline: true})
		}
		if q.LowestAsk != nil {
			fields = append(fields, discordField{Name: "Lowest ask", Value: q.LowestAsk.StringFixed(domain.AmountScale), Inline: true})
		}
	}

	embed := discordEmbed{
		Title:  title,
		Color:  eventColour(evt.Type),
		Fields: fields,
	}
	if !evt.At.IsZero() {
		embed.Timestamp = evt.At.UTC().Format(time.RFC3339)
	}
	return embed
}

func eventColour(t domain.EventType) int {
	name := string(t)
	switch {
	case strings.HasSuffix(name, "_cancelled"), strings.HasSuffix(name, "_expired"):
		return colourEnded
	case t == domain.EventOrderMatched, t == domain.EventOrderCompleted, t == domain.EventHoldConverted:
		return colourSale
	case strings.HasPrefix(name, "hold_"):
		return colourHold
	case strings.HasPrefix(name, "bid_"), strings.HasPrefix(name, "ask_"):
		return colourBook
	default:
		return colourListing
	}
}

func (d *DiscordSender) post(ctx context.Context, payload discordPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
