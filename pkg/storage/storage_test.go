package storage

import (
	"log/slog"

	"github.com/raterudder/tousync/pkg/log"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}
