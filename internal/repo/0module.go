package repo

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("repo",
		fx.Provide(NewPrivacyAudit),
		fx.Invoke(migrate),
	)
}

func migrate(lc fx.Lifecycle, audits *PrivacyAudit) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !audits.Enabled() {
				log.Info().Str("evt.name", "repo.audit_disabled").Msg("no database configured, privacy audits are kept in the logs only")
				return nil
			}
			return audits.Migrate(ctx)
		},
	})
}
