package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"

	"github.com/pgsleuth/pgsleuth/util"
)

func getDefaultConfig() *Config {
	config := &Config{
		ListenAddress: ":8080",
		CacheTTLSecs:  3600,
		PollSchedule:  "0 */5 * * * * *",
		AIModel:       "gpt-4o-mini",
	}

	if listenAddress := os.Getenv("PGSLEUTH_LISTEN_ADDRESS"); listenAddress != "" {
		config.ListenAddress = listenAddress
	}
	if baseURL := os.Getenv("PGSLEUTH_TRACKER_API_BASEURL"); baseURL != "" {
		config.TrackerAPIBaseURL = baseURL
	}
	if apiKey := os.Getenv("PGSLEUTH_TRACKER_API_KEY"); apiKey != "" {
		config.TrackerAPIKey = apiKey
	}
	if org := os.Getenv("PGSLEUTH_TRACKER_ORG"); org != "" {
		config.TrackerOrg = org
	}
	if project := os.Getenv("PGSLEUTH_TRACKER_PROJECT"); project != "" {
		config.TrackerProject = project
	}
	if redisURL := os.Getenv("PGSLEUTH_REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}
	if cacheTTL := os.Getenv("PGSLEUTH_CACHE_TTL_SECS"); cacheTTL != "" {
		config.CacheTTLSecs, _ = strconv.Atoi(cacheTTL)
	}
	if databaseURL := os.Getenv("PGSLEUTH_DATABASE_URL"); databaseURL != "" {
		config.DatabaseURL = databaseURL
	}
	if logLocation := os.Getenv("PGSLEUTH_LOG_LOCATION"); logLocation != "" {
		config.LogLocation = logLocation
	}
	if pollSchedule := os.Getenv("PGSLEUTH_POLL_SCHEDULE"); pollSchedule != "" {
		config.PollSchedule = pollSchedule
	}
	if criticalTables := os.Getenv("PGSLEUTH_CRITICAL_TABLES"); criticalTables != "" {
		config.CriticalTables = criticalTables
	}
	if aiModel := os.Getenv("PGSLEUTH_AI_MODEL"); aiModel != "" {
		config.AIModel = aiModel
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAIAPIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.OpenAIBaseURL = baseURL
	}
	if apiKey := os.Getenv("PGSLEUTH_AI_FALLBACK_API_KEY"); apiKey != "" {
		config.AIFallbackAPIKey = apiKey
	}
	if baseURL := os.Getenv("PGSLEUTH_AI_FALLBACK_BASEURL"); baseURL != "" {
		config.AIFallbackBaseURL = baseURL
	}
	if sentryDSN := os.Getenv("PGSLEUTH_SENTRY_DSN"); sentryDSN != "" {
		config.SentryDSN = sentryDSN
	}

	return config
}

// Read - Loads configuration from the given INI file (when it exists) on
// top of environment/default values
func Read(logger *util.Logger, filename string) (Config, error) {
	config := getDefaultConfig()

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			configFile, err := ini.Load(filename)
			if err != nil {
				return *config, errors.Wrap(err, "failed to read config file")
			}
			if err = configFile.Section("pgsleuth").MapTo(config); err != nil {
				return *config, errors.Wrap(err, "failed to map config file")
			}
			logger.PrintVerbose("Read config file %s", filename)
		} else {
			logger.PrintVerbose("Config file %s not found, using environment/defaults", filename)
		}
	}

	return *config, nil
}

// CriticalTableList - The configured critical tables as a cleaned list;
// empty means the analyzer default applies
func (config Config) CriticalTableList() []string {
	if strings.TrimSpace(config.CriticalTables) == "" {
		return nil
	}
	var tables []string
	for _, table := range strings.Split(config.CriticalTables, ",") {
		if table = strings.TrimSpace(table); table != "" {
			tables = append(tables, strings.ToLower(table))
		}
	}
	return tables
}
