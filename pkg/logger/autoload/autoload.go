// Package autoload initialises the global logger from LOG_* variables when imported.
package autoload

import (
	"github.com/kelseyhightower/envconfig"

	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

func init() {
	var conf logx.Config
	if err := envconfig.Process("LOG", &conf); err != nil {
		logx.Init()
		logx.Warn().Err(err).Msg("invalid LOG_* configuration, using defaults")
		return
	}
	logx.Init(conf)
}
