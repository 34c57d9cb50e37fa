package utils

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
)

// ReloadFunc receives a freshly loaded registry.
type ReloadFunc func(config *Config)

func reloadConfig(infoLog, errLog *log.Logger, load func() (*Config, error), reload ReloadFunc) {
	config, err := load()
	if err != nil {
		errLog.Printf("Error in loading config files: %v\n", err)
		return
	}
	infoLog.Printf("Loaded %d datasets", len(config.Datasets))
	reload(config)
}

// WatchConfig reloads the registry on SIGHUP.
func WatchConfig(infoLog, errLog *log.Logger, load func() (*Config, error), reload ReloadFunc) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			infoLog.Println("Caught SIGHUP, reloading config...")
			reloadConfig(infoLog, errLog, load, reload)
		}
	}()
}

// ScheduleReload reloads the registry on a cron schedule such as
// "@every 10m" or "0 * * * *". The caller stops the returned scheduler.
func ScheduleReload(spec string, infoLog, errLog *log.Logger, load func() (*Config, error), reload ReloadFunc) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		infoLog.Printf("Scheduled reload (%s)", spec)
		reloadConfig(infoLog, errLog, load, reload)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
