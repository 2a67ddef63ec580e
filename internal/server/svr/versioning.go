package svr

import (
	"github.com/gofiber/fiber/v2"
)

type V1 struct {
	fiber.Router
}

func CreateEndpointGroups(app *fiber.App) *V1 {
	return &V1{Router: app.Group("/api/v1")}
}
