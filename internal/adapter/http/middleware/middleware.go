package middleware

import (
	"github.com/askhat-b/taxi-dispatch/config"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
)

type Middleware struct {
	auth config.Auth
	log  logger.Logger
}

func NewMiddleware(auth config.Auth, log logger.Logger) *Middleware {
	return &Middleware{
		auth: auth,
		log:  log,
	}
}
