package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/forest-guardian/spectral-anomaly-service/internal/properties"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

func send(url string, message DiscordMessage) error {
	if url == "" {
		return nil
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}

func SendDiscordErrorNotification(errorMessage string) error {
	return send(properties.DiscordErrorNotificationUrl(), DiscordMessage{
		Embeds: []DiscordEmbed{
			{
				Title:       "🚨 Spectral Anomaly Error",
				Description: errorMessage,
				Color:       16711680, // Red color
			},
		},
	})
}

func SendDiscordSuccessNotification(successMessage string) error {
	return send(properties.DiscordSuccessNotificationUrl(), DiscordMessage{
		Embeds: []DiscordEmbed{
			{
				Title:       "✅ Spectral Anomaly Complete",
				Description: successMessage,
				Color:       65280, // Green color
			},
		},
	})
}
