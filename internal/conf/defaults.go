// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for every known key
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.fileoutput.enabled", false)
	viper.SetDefault("logging.fileoutput.path", "logs/labpredict.log")
	viper.SetDefault("logging.fileoutput.level", "debug")

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.path", "labpredict.db")
	viper.SetDefault("database.dsn", "")

	viper.SetDefault("models.germination", "")
	viper.SetDefault("models.maturation", "")
	viper.SetDefault("models.stats", "")

	viper.SetDefault("prediction.workers", 4)
	viper.SetDefault("prediction.batchsize", 200)

	viper.SetDefault("reminders.offsetdays", 5)
	viper.SetDefault("reminders.leaddays", 5)
	viper.SetDefault("reminders.proximitymode", string(ProximityExact))
	viper.SetDefault("reminders.schedule", "0 7 * * *")
	viper.SetDefault("reminders.timezone", "Local")
	viper.SetDefault("reminders.inline", true)

	viper.SetDefault("notifications.ratelimit", 0)
	viper.SetDefault("notifications.ratewindow", time.Minute)
	viper.SetDefault("notifications.cachettl", 10*time.Minute)

	viper.SetDefault("server.listen", "127.0.0.1:8080")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
}
