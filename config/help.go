package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `taxi-dispatch - ride matching service

Usage:
  dispatch [flags]

Flags:
  -config string   path to a YAML config file (optional, env vars override)
  -help            show this message

Configuration is read from environment variables; see config/config.go
for the full list of DISPATCH_*, DATABASE_*, RABBITMQ_*, REDIS_* and
PRICING_* variables and their defaults.
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
}
