package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	redactedSuffix    = "...redacted"
	visibleSecret     = 4
	notSetPlaceholder = "<not set>"
)

// FormatRedacted renders the configuration as "key: value" lines with secrets
// masked, suitable for the -config-only check.
func FormatRedacted(cfg Config) string {
	lines := []string{
		fmt.Sprintf("app_env: %s", cfg.AppEnv),
		fmt.Sprintf("log_level: %s", cfg.LogLevel),
		fmt.Sprintf("http_port: %d", cfg.HTTPPort),
		fmt.Sprintf("telegram_token: %s", maskSecret(cfg.TelegramToken)),
		fmt.Sprintf("store_backend: %s", cfg.StoreBackend),
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		lines = append(lines,
			fmt.Sprintf("postgres_dsn: %s", redactURL(cfg.PostgresDSN)),
			fmt.Sprintf("postgres_migrate: %t", cfg.PostgresMigrate),
		)
	case BackendMongo:
		lines = append(lines,
			fmt.Sprintf("mongo_uri: %s", redactURL(cfg.MongoURI)),
			fmt.Sprintf("mongo_db: %s", cfg.MongoDB),
		)
	default:
		lines = append(lines,
			fmt.Sprintf("supabase_url: %s", orPlaceholder(cfg.SupabaseURL)),
			fmt.Sprintf("supabase_key: %s", maskSecret(cfg.SupabaseKey)),
		)
	}

	lines = append(lines,
		fmt.Sprintf("rate_limit_rps: %g", cfg.RateLimitRPS),
		fmt.Sprintf("rate_limit_burst: %d", cfg.RateLimitBurst),
		fmt.Sprintf("redis_addr: %s", orPlaceholder(redactURL(cfg.RedisAddr))),
		fmt.Sprintf("service_delete_owner_check: %t", cfg.DeleteOwnerOnly),
	)

	return strings.Join(lines, "\n")
}

func maskSecret(secret string) string {
	if secret == "" {
		return notSetPlaceholder
	}
	if len(secret) <= visibleSecret {
		return redactedSuffix
	}
	return secret[:visibleSecret] + redactedSuffix
}

// redactURL strips userinfo from connection strings that parse as URLs and
// leaves anything else untouched.
func redactURL(raw string) string {
	if raw == "" {
		return notSetPlaceholder
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.User == nil {
		return raw
	}

	parsed.User = nil
	return parsed.String()
}

func orPlaceholder(value string) string {
	if value == "" {
		return notSetPlaceholder
	}
	return value
}
