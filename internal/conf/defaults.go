package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers default values so a bare install runs with a local
// sqlite store, local audio storage and the built-in rule table.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "carwatch")
	v.SetDefault("main.loglevel", "info")
	v.SetDefault("main.logfile", "")

	v.SetDefault("database.sqlite.enabled", true)
	v.SetDefault("database.sqlite.path", "carwatch.db")
	v.SetDefault("database.mysql.enabled", false)
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")

	v.SetDefault("queue.buffersize", 1024)
	v.SetDefault("queue.visibilitytimeout", 60*time.Second)
	v.SetDefault("queue.maxreceivecount", 3)
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.mqtt.enabled", false)
	v.SetDefault("queue.mqtt.topic", "carwatch/uploads")
	v.SetDefault("queue.mqtt.clientid", "carwatch-ingress")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local.path", "audio_uploads")
	v.SetDefault("storage.ftp.port", 21)
	v.SetDefault("storage.ftp.timeout", 30*time.Second)

	v.SetDefault("classifier.timeout", 30*time.Second)
	v.SetDefault("classifier.modelversion", "yamnet-v1.0")
	v.SetDefault("classifier.taxonomy", DefaultTaxonomy())
	v.SetDefault("classifier.minconfidence", 0.0)

	v.SetDefault("engine.dedupwindow", 30*time.Second)

	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.queuesize", 256)
	v.SetDefault("notification.workers", 2)
	v.SetDefault("notification.maxattempts", 3)
	v.SetDefault("notification.initialbackoff", time.Second)
	v.SetDefault("notification.maxbackoff", 30*time.Second)
	v.SetDefault("notification.webhook.timeout", 10*time.Second)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.address", ":8080")
}
