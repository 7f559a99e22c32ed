package channel

import (
	"context"
	"fmt"

	"github.com/spirittours/contact-router/internal/domain"
)

// InstagramConfig holds Instagram Graph API credentials (spec §6). Instagram
// Direct messaging shares Facebook's page token model: a single page-scoped
// token authorizes sends for the Instagram professional account linked to it.
type InstagramConfig struct {
	PageAccessToken string
	AppSecret       string
	VerifyToken     string
	APIVersion      string
}

// Instagram implements port.Connector for Instagram Direct. It is grounded
// on the originating platform's InstagramConnector, which itself is a thin
// subclass of the Messenger connector since both transports share the same
// "messaging" webhook envelope and Send API under the Graph API — this Go
// connector embeds *Messenger rather than duplicating that logic.
type Instagram struct {
	*Messenger
}

// NewInstagram builds an Instagram connector by reusing Messenger's parsing
// and sending implementation against the Instagram-scoped endpoint.
func NewInstagram(cfg InstagramConfig, rc *restClient) *Instagram {
	version := cfg.APIVersion
	if version == "" {
		version = "v18.0"
	}
	m := &Messenger{
		cfg: MessengerConfig{
			PageAccessToken: cfg.PageAccessToken,
			AppSecret:       cfg.AppSecret,
			VerifyToken:     cfg.VerifyToken,
			APIVersion:      version,
		},
		baseURL: fmt.Sprintf("https://graph.facebook.com/%s/me/messages", version),
		rc:      rc,
		channel: domain.ChannelInstagram,
	}
	return &Instagram{Messenger: m}
}
