package config

// ProvidersConfig holds per-network credentials and endpoints. It is read once
// at startup to build the adapter registry and never re-read mid-flow.
type ProvidersConfig struct {
	Mpesa  MpesaConfig  `yaml:"mpesa"`
	MTN    MTNConfig    `yaml:"mtnmomo"`
	Airtel AirtelConfig `yaml:"airtel"`
}

type MpesaConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	ShortCode     string `yaml:"short_code"`
	Passkey       string `yaml:"passkey"`
	WebhookSecret string `yaml:"webhook_secret"`
	Active        bool   `yaml:"active"`
	Test          bool   `yaml:"test"`
}

type MTNConfig struct {
	BaseURL         string `yaml:"base_url"`
	SubscriptionKey string `yaml:"subscription_key"`
	APIKey          string `yaml:"api_key"`
	WebhookSecret   string `yaml:"webhook_secret"`
	Active          bool   `yaml:"active"`
	Test            bool   `yaml:"test"`
}

type AirtelConfig struct {
	BaseURL       string `yaml:"base_url"`
	Token         string `yaml:"token"`
	Country       string `yaml:"country"`
	WebhookSecret string `yaml:"webhook_secret"`
	Active        bool   `yaml:"active"`
	Test          bool   `yaml:"test"`
}
