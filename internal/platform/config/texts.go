package config

import (
	"fmt"
	"os"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"gopkg.in/yaml.v3"
)

// NotificationText is the title and description shown for a system diagnostic subtype.
type NotificationText struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Texts is the display string table. Fields left empty in the overlay file keep their defaults.
type Texts struct {
	StartingUp       string `yaml:"starting_up"`
	ShuttingDown     string `yaml:"shutting_down"`
	ReadyToUse       string `yaml:"ready_to_use"`
	ShutDownComplete string `yaml:"shut_down_complete"`
	LiveFeedOn       string `yaml:"live_feed_on"`
	LiveFeedOff      string `yaml:"live_feed_off"`

	TurnLabel       string `yaml:"turn_label"`
	UnreadableLabel string `yaml:"unreadable_label"`

	Notifications map[string]NotificationText `yaml:"notifications"`
}

func DefaultTexts() Texts {
	systemError := NotificationText{Title: "System error", Description: "Please contact IT for assistance."}
	return Texts{
		StartingUp:       "Starting up",
		ShuttingDown:     "Shutting down",
		ReadyToUse:       "Ready to use",
		ShutDownComplete: "Shut down complete",
		LiveFeedOn:       "Live Feed On",
		LiveFeedOff:      "Live Feed Off",
		TurnLabel:        "Turn the label to the front of the camera",
		UnreadableLabel:  "Sorry, we can't read this label",
		Notifications: map[string]NotificationText{
			domain.SubtypeEdgeModelError: systemError,
			domain.SubtypeOCRError:       systemError,
			domain.SubtypeTTSError:       systemError,
			domain.SubtypeNoVideoFrame: {
				Title:       "camera not working",
				Description: "Please contact IT for assistance",
			},
			domain.SubtypeNoAudioContext: {
				Title:       "Browser can't play audio",
				Description: "Please try opening the page on a different browser or contact IT for assistance.",
			},
			domain.SubtypeWebsocketError: {
				Title:       "Error connecting to system backend",
				Description: "Attempting connection retry. No action required.",
			},
		},
	}
}

// LoadTexts returns the defaults overlaid with the YAML file at path. An empty path yields the defaults.
func LoadTexts(path string) (Texts, error) {
	texts := DefaultTexts()
	if path == "" {
		return texts, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Texts{}, fmt.Errorf("failed to read KIOSK_CONFIG_FILE: %w", err)
	}

	var overlay Texts
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return Texts{}, fmt.Errorf("failed to parse KIOSK_CONFIG_FILE: %w", err)
	}

	texts.merge(overlay)
	return texts, nil
}

func (t *Texts) merge(o Texts) {
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&t.StartingUp, o.StartingUp},
		{&t.ShuttingDown, o.ShuttingDown},
		{&t.ReadyToUse, o.ReadyToUse},
		{&t.ShutDownComplete, o.ShutDownComplete},
		{&t.LiveFeedOn, o.LiveFeedOn},
		{&t.LiveFeedOff, o.LiveFeedOff},
		{&t.TurnLabel, o.TurnLabel},
		{&t.UnreadableLabel, o.UnreadableLabel},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}

	for subtype, text := range o.Notifications {
		base := t.Notifications[subtype]
		if text.Title != "" {
			base.Title = text.Title
		}
		if text.Description != "" {
			base.Description = text.Description
		}
		t.Notifications[subtype] = base
	}
}
