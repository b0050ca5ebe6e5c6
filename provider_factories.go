package forwarder

import (
	"github.com/goliatone/go-forwarder/core"
	"github.com/goliatone/go-forwarder/security"
	"github.com/goliatone/go-forwarder/transport"
)

// WebhookTransportFromConfig returns the HTTP client used for deliveries.
// Zero timeouts fall back to 15 seconds each.
func WebhookTransportFromConfig(cfg core.DeliveryConfig) core.WebhookTransport {
	return transport.NewWebhookClientFromConfig(cfg)
}

func PayloadCodec() core.PayloadEncrypter {
	return security.NewPayloadCodec()
}

// withDefaultCollaborators prepends the default transport and codec so that
// caller options still take precedence.
func withDefaultCollaborators(cfg Config, opts []Option) []Option {
	out := make([]Option, 0, len(opts)+2)
	out = append(out,
		core.WithWebhookTransport(WebhookTransportFromConfig(cfg.Delivery)),
		core.WithPayloadEncrypter(PayloadCodec()),
	)
	return append(out, opts...)
}
