package notification

import (
	"errors"
	"testing"
	"time"

	apperrors "brutalist/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	embed := Embed(Message{
		Title:       "Report completed",
		Description: "3 topic groups",
		Severity:    "success",
		Fields:      map[string]string{"topic": "tech", "groups": "3", "headlines": "17"},
		Timestamp:   ts,
	})

	assert.Equal(t, "Report completed", embed.Title)
	assert.Equal(t, 0x2ECC71, embed.Color)
	assert.Equal(t, "2025-03-01T12:00:00Z", embed.Timestamp)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "groups", embed.Fields[0].Name)
	assert.Equal(t, "headlines", embed.Fields[1].Name)
	assert.Equal(t, "topic", embed.Fields[2].Name)
}

func TestEmbed_DefaultsTimestampAndColor(t *testing.T) {
	embed := Embed(Message{Title: "x", Severity: "unknown"})
	assert.NotEmpty(t, embed.Timestamp)
	assert.Equal(t, 0x808080, embed.Color)
	assert.Empty(t, embed.Fields)
}

func TestNewNotificationClient_RequiresEnv(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	_, err := NewNotificationClient()
	assert.Error(t, err)

	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "")
	_, err = NewNotificationClient()
	assert.Error(t, err)
}

func TestSend_Unconfigured(t *testing.T) {
	var c *NotificationClient
	assert.True(t, errors.Is(c.Send(Message{Title: "x"}), apperrors.ErrNotConfigured))
	assert.NoError(t, c.Close())
}
