package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/memohai/forwardbot/internal/mirror"
)

func sourceMessage(m *discordgo.Message) mirror.SourceMessage {
	msg := mirror.SourceMessage{
		ID:          m.ID,
		ChannelID:   mirror.ChannelID(m.ChannelID),
		CommunityID: mirror.CommunityID(m.GuildID),
		Author:      author(m),
		Content:     m.Content,
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		msg.Embeds = append(msg.Embeds, fromDiscordEmbed(e))
	}
	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, mirror.AttachmentSource{
			URL:         att.URL,
			Filename:    att.Filename,
			ContentType: att.ContentType,
		})
	}
	return msg
}

// author prefers the guild nickname, then the global display name, then the
// username. An author without a custom avatar gets an empty URL.
func author(m *discordgo.Message) mirror.Author {
	if m.Author == nil {
		return mirror.Author{}
	}
	name := m.Author.Username
	if g := strings.TrimSpace(m.Author.GlobalName); g != "" {
		name = g
	}
	if m.Member != nil {
		if nick := strings.TrimSpace(m.Member.Nick); nick != "" {
			name = nick
		}
	}
	var avatar string
	if m.Author.Avatar != "" {
		avatar = m.Author.AvatarURL("")
	}
	return mirror.Author{Name: name, AvatarURL: avatar}
}

func fromDiscordEmbed(e *discordgo.MessageEmbed) mirror.Embed {
	out := mirror.Embed{
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Timestamp:   e.Timestamp,
		Color:       e.Color,
	}
	if e.Footer != nil {
		out.FooterText = e.Footer.Text
		out.FooterIconURL = e.Footer.IconURL
	}
	if e.Image != nil {
		out.ImageURL = e.Image.URL
	}
	if e.Thumbnail != nil {
		out.ThumbnailURL = e.Thumbnail.URL
	}
	if e.Author != nil {
		out.AuthorName = e.Author.Name
		out.AuthorURL = e.Author.URL
		out.AuthorIconURL = e.Author.IconURL
	}
	for _, f := range e.Fields {
		if f == nil {
			continue
		}
		out.Fields = append(out.Fields, mirror.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

// toDiscordEmbed returns nil for an embed that carries nothing Discord would
// render, such as a provider video embed reduced to its known fields.
func toDiscordEmbed(e mirror.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Timestamp:   e.Timestamp,
		Color:       e.Color,
	}
	empty := e.Title == "" && e.Description == ""
	if e.FooterText != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.FooterText, IconURL: e.FooterIconURL}
		empty = false
	}
	if e.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
		empty = false
	}
	if e.ThumbnailURL != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
		empty = false
	}
	if e.AuthorName != "" {
		out.Author = &discordgo.MessageEmbedAuthor{Name: e.AuthorName, URL: e.AuthorURL, IconURL: e.AuthorIconURL}
		empty = false
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		empty = false
	}
	if empty {
		return nil
	}
	return out
}
