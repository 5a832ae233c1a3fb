package pkg

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const AppVersion = "1.0.0"

// ApplyDefaults registers fallback values for every setting the service reads,
// so a partial settings.toml (or none at all in tests) still boots.
func ApplyDefaults() {
	viper.SetDefault("bind", "0.0.0.0:8445")
	viper.SetDefault("grpc_bind", "0.0.0.0:7445")

	viper.SetDefault("debug.database", false)
	viper.SetDefault("debug.print_routes", false)

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.prefix", "polls_")

	viper.SetDefault("security.session_ttl", 30*24*time.Hour)
	viper.SetDefault("security.trusted_proxies", []string{})

	viper.SetDefault("polls.min_options", 2)
	viper.SetDefault("polls.max_options", 10)
	viper.SetDefault("polls.page_size", 12)

	viper.SetDefault("scheduler.closing_interval", "@every 5m")

	viper.SetEnvPrefix("polls")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
