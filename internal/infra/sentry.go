package infra

import (
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/pkg/bininfo"
)

// SentryInit initializes sentry with side-effect
func SentryInit(conf *appconfig.Config) error {
	if conf.SentryDSN == "" {
		log.Warn().Str("evt.name", "infra.sentry.disabled").Msg("no sentry dsn configured, errors are only logged")
		return nil
	}

	env := "production"
	if conf.DevMode {
		env = "development"
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              conf.SentryDSN,
		Release:          "prisma@" + bininfo.Version,
		Environment:      env,
		Debug:            conf.DevMode,
		AttachStacktrace: true,
		TracesSampleRate: 0.01,
		// cohort filters in query strings identify users
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.QueryString = ""
				event.Request.Cookies = ""
			}
			return event
		},
	})
}
