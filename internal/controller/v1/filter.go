package v1

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/apierr"
	"github.com/clovid/prisma-sub000/internal/pkg/rekuest"
)

type filterQuery struct {
	Cohort string `query:"cohort" validate:"omitempty,csvints"`
}

// parseFilter reads the cohort and the repeated timespan parameters. Timespans are read
// from the raw query args since each value is itself comma joined.
func parseFilter(ctx *fiber.Ctx) (model.Filter, error) {
	var q filterQuery
	if err := rekuest.ValidQuery(ctx, &q); err != nil {
		return model.Filter{}, err
	}

	var timespans []string
	for _, raw := range ctx.Context().QueryArgs().PeekMulti("timespan") {
		timespans = append(timespans, string(raw))
	}

	return model.NewFilter(model.ParseCohort(q.Cohort), timespans), nil
}

func taskIDParam(ctx *fiber.Ctx) (model.ID, error) {
	id := strings.TrimSpace(ctx.Params("taskId"))
	if id == "" {
		return "", apierr.ErrInvalidReq.Msg("invalid or missing taskId")
	}
	return model.ID(id), nil
}

// taskIDsParam splits a comma joined list of task ids, keeping their order.
func taskIDsParam(ctx *fiber.Ctx) ([]model.ID, error) {
	ids := lo.Uniq(lo.Compact(lo.Map(strings.Split(ctx.Params("taskId"), ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
	if len(ids) == 0 {
		return nil, apierr.ErrInvalidReq.Msg("invalid or missing taskId")
	}
	return lo.Map(ids, func(s string, _ int) model.ID { return model.ID(s) }), nil
}
