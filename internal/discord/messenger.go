package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// messenger posts player notices and the controller embed.
type messenger struct {
	session *discordgo.Session
}

func (m messenger) Send(channelID string, embed *discordgo.MessageEmbed) (string, error) {
	if channelID == "" {
		return "", errors.New("text channel is not set")
	}
	msg, err := m.session.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", channelID, err)
	}
	return msg.ID, nil
}

func (m messenger) Edit(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	if _, err := m.session.ChannelMessageEditEmbed(channelID, messageID, embed); err != nil {
		return fmt.Errorf("edit %s/%s: %w", channelID, messageID, err)
	}
	return nil
}
