package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/signal42/campaign-agent/internal/config"
)

// MQTTChannel publishes campaign updates as retained JSON messages on
// <topic_base>/campaign/<media_buy_id>/update for ops dashboards.
type MQTTChannel struct {
	cfg config.MQTTConfig
	cm  *autopaho.ConnectionManager
}

// NewMQTTChannel creates an MQTT channel. Call Connect before handing
// it to the service.
func NewMQTTChannel(cfg config.MQTTConfig) *MQTTChannel {
	if cfg.TopicBase == "" {
		cfg.TopicBase = "adagent"
	}
	return &MQTTChannel{cfg: cfg}
}

// Connect establishes the broker connection. autopaho keeps retrying
// in the background after the first attempt, so a slow broker does not
// fail startup.
func (c *MQTTChannel) Connect(ctx context.Context) error {
	brokerURL, err := url.Parse(c.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: c.cfg.Username,
		ConnectPassword: []byte(c.cfg.Password),
		ClientConfig: paho.ClientConfig{
			ClientID: "campaign-agent-notify",
		},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.cm = cm
	return nil
}

// Close disconnects from the broker.
func (c *MQTTChannel) Close(ctx context.Context) error {
	if c.cm == nil {
		return nil
	}
	return c.cm.Disconnect(ctx)
}

// Name implements Channel.
func (c *MQTTChannel) Name() string { return "mqtt" }

// Send implements Channel.
func (c *MQTTChannel) Send(ctx context.Context, u Update) error {
	if c.cm == nil {
		return fmt.Errorf("mqtt channel not connected")
	}

	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	topic := fmt.Sprintf("%s/campaign/%s/update", c.cfg.TopicBase, u.MediaBuyID)
	if _, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  true,
	}); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}
