package mirror

import (
	"context"
	"strings"
)

// DefaultAvatarURL is used when the source author has no avatar.
const DefaultAvatarURL = "https://cdn.discordapp.com/embed/avatars/1.png"

// ChannelID identifies a channel within one community.
type ChannelID string

func (c ChannelID) String() string {
	return string(c)
}

// CommunityID identifies a sender or receiver community (guild).
type CommunityID string

func (c CommunityID) String() string {
	return string(c)
}

// ChannelKind is the platform channel type code. Mirrors are created with
// the same kind as their source.
type ChannelKind int

// ChannelDescriptor describes one channel as listed by the directory.
type ChannelDescriptor struct {
	ID       ChannelID
	Name     string
	Kind     ChannelKind
	Category bool
}

// MirrorName is the name given to a destination channel created for src.
func MirrorName(src ChannelDescriptor) string {
	return src.Name + "-" + src.ID.String()
}

// ChannelMapping maps a source channel to its ordered destination channels.
type ChannelMapping map[ChannelID][]ChannelID

// Destinations returns the distinct destination channels in first-seen order
// over the sorted source keys.
func (m ChannelMapping) Destinations() []ChannelID {
	seen := make(map[ChannelID]struct{}, len(m))
	out := make([]ChannelID, 0, len(m))
	for _, src := range sortedKeys(m) {
		for _, dst := range m[src] {
			if _, ok := seen[dst]; ok {
				continue
			}
			seen[dst] = struct{}{}
			out = append(out, dst)
		}
	}
	return out
}

func (m ChannelMapping) clone() ChannelMapping {
	out := make(ChannelMapping, len(m))
	for src, dsts := range m {
		out[src] = append([]ChannelID(nil), dsts...)
	}
	return out
}

// Endpoint is a webhook as listed by the endpoint service.
type Endpoint struct {
	ID    string
	Name  string
	Token string
}

// HasToken reports whether the endpoint can be used for anonymous push.
func (e Endpoint) HasToken() bool {
	return strings.TrimSpace(e.Token) != ""
}

// DeliveryEndpoint is a resolved push target for one destination channel.
type DeliveryEndpoint struct {
	ChannelID  ChannelID `json:"channel_id"`
	EndpointID string    `json:"endpoint_id"`
	Token      string    `json:"-"`
}

// Author is the identity shown on relayed messages.
type Author struct {
	Name      string
	AvatarURL string
}

// EmbedField is one name/value pair inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a platform-neutral rich embed.
type Embed struct {
	Title         string
	Description   string
	URL           string
	Timestamp     string
	Color         int
	FooterText    string
	FooterIconURL string
	ImageURL      string
	ThumbnailURL  string
	AuthorName    string
	AuthorURL     string
	AuthorIconURL string
	Fields        []EmbedField
}

// AttachmentSource points at a file attached to a source message.
type AttachmentSource struct {
	URL         string
	Filename    string
	ContentType string
}

// File is an attachment ready for upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// SourceMessage is a message-created event from the source community.
type SourceMessage struct {
	ID          string
	ChannelID   ChannelID
	CommunityID CommunityID
	Author      Author
	Content     string
	Embeds      []Embed
	Attachments []AttachmentSource
}

// RelayMessage is the translated message pushed to every destination.
type RelayMessage struct {
	Username  string
	AvatarURL string
	Content   string
	Embeds    []Embed
	Files     []File
}

// IsEmpty reports whether the message has nothing the platform would accept.
func (m RelayMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.Embeds) == 0 && len(m.Files) == 0
}

// ChannelDirectory lists and creates channels in a community.
type ChannelDirectory interface {
	ListChannels(ctx context.Context, community CommunityID) ([]ChannelDescriptor, error)
	CreateChannel(ctx context.Context, community CommunityID, name string, kind ChannelKind) (ChannelDescriptor, error)
}

// EndpointService lists and creates webhooks on a channel.
type EndpointService interface {
	ListEndpoints(ctx context.Context, channel ChannelID) ([]Endpoint, error)
	CreateEndpoint(ctx context.Context, channel ChannelID, displayName string) (Endpoint, error)
}

// Pusher submits one message to a delivery endpoint.
type Pusher interface {
	Push(ctx context.Context, endpoint DeliveryEndpoint, msg RelayMessage) error
}

// AttachmentProxy re-hosts the attachments of one message. Failed fetches are
// dropped; the returned files have no guaranteed order.
type AttachmentProxy interface {
	FetchAll(ctx context.Context, sources []AttachmentSource) []File
}
