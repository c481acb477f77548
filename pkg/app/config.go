// Copyright 2024-2026 Aiku AI

package app

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/gamerelay/pkg/relay"
)

//go:embed example-config.yaml
var ExampleConfig string

// EnvPrefix prefixes every environment override, e.g.
// GAMERELAY_DISCORD_TOKEN.
const EnvPrefix = "GAMERELAY_"

// Config is the whole relay configuration.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway" envPrefix:"GATEWAY_"`
	Health     HealthConfig     `yaml:"health" envPrefix:"HEALTH_"`
	Relay      RelayConfig      `yaml:"relay"`
	Discord    DiscordConfig    `yaml:"discord" envPrefix:"DISCORD_"`
	Matrix     MatrixConfig     `yaml:"matrix" envPrefix:"MATRIX_"`
	Mattermost MattermostConfig `yaml:"mattermost" envPrefix:"MATTERMOST_"`
	Twitch     TwitchConfig     `yaml:"twitch" envPrefix:"TWITCH_"`
	// Links forward everything one bridge relays into another bridge.
	Links []LinkConfig `yaml:"links"`

	Logging zeroconfig.Config `yaml:"logging"`
}

type GatewayConfig struct {
	Listen           string        `yaml:"listen" env:"LISTEN"`
	Path             string        `yaml:"path"`
	Token            string        `yaml:"token" env:"TOKEN"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
}

type HealthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen" env:"LISTEN"`
	Timeout time.Duration `yaml:"timeout"`
}

type RelayConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// BridgeConfig is shared by every platform section.
type BridgeConfig struct {
	Enabled bool     `yaml:"enabled" env:"ENABLED"`
	Ignore  []string `yaml:"ignore"`
	// Mode is "all" or "single". Single mode only uses the session whose
	// profile name is Target.
	Mode        string        `yaml:"mode"`
	Target      string        `yaml:"target"`
	DedupWindow time.Duration `yaml:"dedup_window"`
	// SenderTemplate renders platform names for the game, e.g.
	// "[D] {{.Name}}".
	SenderTemplate string `yaml:"sender_template"`

	senderTemplate *template.Template `yaml:"-"`
}

type DiscordConfig struct {
	BridgeConfig `yaml:",inline"`
	Token        string `yaml:"token" env:"TOKEN"`
	ChannelID    string `yaml:"channel_id"`
	WebhookID    string `yaml:"webhook_id"`
	WebhookToken string `yaml:"webhook_token" env:"WEBHOOK_TOKEN"`
}

type MatrixConfig struct {
	BridgeConfig  `yaml:",inline"`
	HomeserverURL string `yaml:"homeserver_url"`
	UserID        string `yaml:"user_id"`
	AccessToken   string `yaml:"access_token" env:"ACCESS_TOKEN"`
	RoomID        string `yaml:"room_id"`
	DisplayName   string `yaml:"display_name"`
	BotPrefix     string `yaml:"bot_prefix"`
}

type MattermostConfig struct {
	BridgeConfig `yaml:",inline"`
	ServerURL    string `yaml:"server_url"`
	Token        string `yaml:"token" env:"TOKEN"`
	ChannelID    string `yaml:"channel_id"`
	// BotPrefix is a username prefix for echo prevention. Any Mattermost
	// username starting with this prefix is treated as a bridge-managed bot
	// and its posts are not relayed into the game.
	BotPrefix string `yaml:"bot_prefix"`
}

type TwitchConfig struct {
	BridgeConfig `yaml:",inline"`
	Username     string `yaml:"username"`
	OAuth        string `yaml:"oauth" env:"OAUTH"`
	Channel      string `yaml:"channel"`
}

// LinkConfig connects two bridges by name. Links are two-way unless OneWay
// is set, in which case only From forwards into To.
type LinkConfig struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	OneWay bool   `yaml:"one_way"`
}

// SenderParams holds the parameters for rendering a sender template.
type SenderParams struct {
	Name     string
	Platform string
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess compiles templates and validates cross-section references.
func (c *Config) PostProcess() error {
	for name, bc := range c.bridges() {
		var err error
		bc.senderTemplate, err = template.New(name).Parse(bc.SenderTemplate)
		if err != nil {
			return fmt.Errorf("%s.sender_template: %w", name, err)
		}
		if _, err := bc.RelayOptions(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	enabled := c.EnabledBridges()
	for i, l := range c.Links {
		if l.From == l.To {
			return fmt.Errorf("links[%d]: cannot link %q to itself", i, l.From)
		}
		for _, name := range []string{l.From, l.To} {
			if !enabled[name] {
				return fmt.Errorf("links[%d]: bridge %q is not enabled", i, name)
			}
		}
	}
	if c.Gateway.Path == "" || !strings.HasPrefix(c.Gateway.Path, "/") {
		return fmt.Errorf("gateway.path must start with /")
	}
	return nil
}

// bridges returns the shared section of every platform by name.
func (c *Config) bridges() map[string]*BridgeConfig {
	return map[string]*BridgeConfig{
		"discord":    &c.Discord.BridgeConfig,
		"matrix":     &c.Matrix.BridgeConfig,
		"mattermost": &c.Mattermost.BridgeConfig,
		"twitch":     &c.Twitch.BridgeConfig,
	}
}

// EnabledBridges reports which platform sections are enabled.
func (c *Config) EnabledBridges() map[string]bool {
	out := make(map[string]bool)
	for name, bc := range c.bridges() {
		if bc.Enabled {
			out[name] = true
		}
	}
	return out
}

// RelayOptions turns the shared section into bridge options.
func (bc *BridgeConfig) RelayOptions() ([]relay.Option, error) {
	mode, err := relay.ParseMode(bc.Mode, bc.Target)
	if err != nil {
		return nil, err
	}
	opts := []relay.Option{
		relay.WithMode(mode),
		relay.WithIgnoreList(relay.NewIgnoreList(bc.Ignore...)),
	}
	if bc.DedupWindow > 0 {
		opts = append(opts, relay.WithDedup(bc.DedupWindow))
	}
	return opts, nil
}

// FormatSender renders the sender template. It falls back to the bare name
// when no template is configured or rendering fails.
func (bc *BridgeConfig) FormatSender(params SenderParams) string {
	if bc.senderTemplate == nil {
		return params.Name
	}
	var buf []byte
	err := bc.senderTemplate.Execute(
		(*templateBuffer)(&buf),
		params,
	)
	if err != nil || len(buf) == 0 {
		return params.Name
	}
	return string(buf)
}

// senderFormatter binds FormatSender to one platform for the adapters.
func (bc *BridgeConfig) senderFormatter(platform string) func(string) string {
	return func(name string) string {
		return bc.FormatSender(SenderParams{Name: name, Platform: platform})
	}
}

// templateBuffer is a simple io.Writer that appends to a byte slice.
type templateBuffer []byte

func (b *templateBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func upgradeBridge(helper up.Helper, section string) {
	helper.Copy(up.Bool, section, "enabled")
	helper.Copy(up.List, section, "ignore")
	helper.Copy(up.Str, section, "mode")
	helper.Copy(up.Str, section, "target")
	helper.Copy(up.Str|up.Int, section, "dedup_window")
	helper.Copy(up.Str, section, "sender_template")
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "gateway", "listen")
	helper.Copy(up.Str, "gateway", "path")
	helper.Copy(up.Str, "gateway", "token")
	helper.Copy(up.Str|up.Int, "gateway", "handshake_timeout")
	helper.Copy(up.Str|up.Int, "gateway", "ping_interval")

	helper.Copy(up.Bool, "health", "enabled")
	helper.Copy(up.Str, "health", "listen")
	helper.Copy(up.Str|up.Int, "health", "timeout")

	helper.Copy(up.Str|up.Int, "relay", "poll_interval")

	upgradeBridge(helper, "discord")
	helper.Copy(up.Str, "discord", "token")
	helper.Copy(up.Str, "discord", "channel_id")
	helper.Copy(up.Str, "discord", "webhook_id")
	helper.Copy(up.Str, "discord", "webhook_token")

	upgradeBridge(helper, "matrix")
	helper.Copy(up.Str, "matrix", "homeserver_url")
	helper.Copy(up.Str, "matrix", "user_id")
	helper.Copy(up.Str, "matrix", "access_token")
	helper.Copy(up.Str, "matrix", "room_id")
	helper.Copy(up.Str, "matrix", "display_name")
	helper.Copy(up.Str, "matrix", "bot_prefix")

	upgradeBridge(helper, "mattermost")
	helper.Copy(up.Str, "mattermost", "server_url")
	helper.Copy(up.Str, "mattermost", "token")
	helper.Copy(up.Str, "mattermost", "channel_id")
	helper.Copy(up.Str, "mattermost", "bot_prefix")

	upgradeBridge(helper, "twitch")
	helper.Copy(up.Str, "twitch", "username")
	helper.Copy(up.Str, "twitch", "oauth")
	helper.Copy(up.Str, "twitch", "channel")

	helper.Copy(up.List, "links")
	helper.Copy(up.Map, "logging")
}

// Upgrader merges a user config onto the example config.
var Upgrader = &up.StructUpgrader{
	SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
	Blocks:         nil,
	Base:           ExampleConfig,
}

// Parse merges data onto the example config, applies environment
// overrides and post-processes the result.
func Parse(data []byte) (*Config, error) {
	var base, user yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &base); err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(user.Content) > 0 {
		Upgrader.DoUpgrade(up.NewHelper(&base, &user))
	}

	var cfg Config
	if err := base.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads an optional .env file next to the process, then the config at
// path.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}
