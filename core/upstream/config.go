package upstream

// Config holds configuration for the FTC Events API client.
type Config struct {
	// BaseURL is the API root, e.g. https://ftc-api.firstinspires.org/v2.0.
	BaseURL string `mapstructure:"base_url" default:"https://ftc-api.firstinspires.org/v2.0"`
	// Username is the API account name used for basic auth.
	Username string `mapstructure:"username" default:""`
	// Token is the API authorization key used for basic auth.
	Token string `mapstructure:"token" default:""`
	// Season is the default competition season to sync.
	Season int `mapstructure:"season" default:"2025"`
	// PageTimeoutSeconds bounds each page request.
	PageTimeoutSeconds int `mapstructure:"page_timeout_seconds" default:"30"`
	// RequestsPerSecond paces requests. Zero or less disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" default:"5"`
	// MaxConcurrency bounds concurrent per-event match fetches.
	MaxConcurrency int `mapstructure:"max_concurrency" default:"4"`
}
