package notification

import (
	"fmt"
	"os"
	"sort"
	"time"

	apperrors "brutalist/pkg/errors"

	"github.com/bwmarrin/discordgo"
)

type Message struct {
	Title       string
	Description string
	Severity    string
	Fields      map[string]string
	Timestamp   time.Time
}

type NotificationClient struct {
	sg        *discordgo.Session
	channelID string
}

// NewNotificationClient opens a Discord session using DISCORD_TOKEN and
// posts to DISCORD_CHANNEL_ID.
func NewNotificationClient() (*NotificationClient, error) {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN environment variable not set")
	}

	channelID := os.Getenv("DISCORD_CHANNEL_ID")
	if channelID == "" {
		return nil, fmt.Errorf("DISCORD_CHANNEL_ID environment variable not set")
	}

	sg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	if err := sg.Open(); err != nil {
		return nil, err
	}

	return &NotificationClient{sg: sg, channelID: channelID}, nil
}

func severityColor(severity string) int {
	switch severity {
	case "error":
		return 0xFF0000
	case "warning":
		return 0xFF8C00
	case "success":
		return 0x2ECC71
	case "info":
		return 0x00BFFF
	default:
		return 0x808080
	}
}

// Embed converts msg into a Discord embed with fields sorted by name.
func Embed(msg Message) *discordgo.MessageEmbed {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       severityColor(msg.Severity),
		Timestamp:   msg.Timestamp.Format(time.RFC3339),
	}

	if len(msg.Fields) > 0 {
		names := make([]string, 0, len(msg.Fields))
		for name := range msg.Fields {
			names = append(names, name)
		}
		sort.Strings(names)

		fields := make([]*discordgo.MessageEmbedField, 0, len(names))
		for _, name := range names {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   name,
				Value:  msg.Fields[name],
				Inline: true,
			})
		}
		embed.Fields = fields
	}

	return embed
}

func (c *NotificationClient) Send(msg Message) error {
	if c == nil || c.sg == nil {
		return apperrors.ErrNotConfigured
	}

	_, err := c.sg.ChannelMessageSendEmbed(c.channelID, Embed(msg))
	return err
}

func (c *NotificationClient) Close() error {
	if c != nil && c.sg != nil {
		return c.sg.Close()
	}
	return nil
}
