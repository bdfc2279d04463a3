package config

// Config - Runtime settings for the pgsleuth server. Values come from the
// INI config file with environment variable overrides (the environment is
// the default way to configure when running inside a container).
type Config struct {
	ListenAddress string `ini:"listen_address"`

	// External issue tracker the analyze endpoint pulls events from
	TrackerAPIBaseURL string `ini:"tracker_api_base_url"`
	TrackerAPIKey     string `ini:"tracker_api_key"`
	TrackerOrg        string `ini:"tracker_org"`
	TrackerProject    string `ini:"tracker_project"`

	// Cache for analysis results; empty URL means in-memory only
	RedisURL     string `ini:"redis_url"`
	CacheTTLSecs int    `ini:"cache_ttl_secs"`

	// Postgres connection for the remediation template store; empty
	// disables the template endpoints
	DatabaseURL string `ini:"database_url"`

	// Local Postgres log file to tail for deadlock reports; empty
	// disables the tail input
	LogLocation string `ini:"log_location"`

	// Cron expression for polling the tracker for new events
	PollSchedule string `ini:"poll_schedule"`

	CriticalTables string `ini:"critical_tables"`

	// LLM explanation providers, tried in order
	AIModel           string `ini:"ai_model"`
	OpenAIAPIKey      string `ini:"openai_api_key"`
	OpenAIBaseURL     string `ini:"openai_base_url"`
	AIFallbackAPIKey  string `ini:"ai_fallback_api_key"`
	AIFallbackBaseURL string `ini:"ai_fallback_base_url"`

	SentryDSN string `ini:"sentry_dsn"`
}
