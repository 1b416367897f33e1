package trip

import (
	"context"
	"errors"

	"github.com/arpatil-dev/TrackORoute/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// Matcher aligns a coordinate sequence to the road network. Implementations
// must fall back to the input on failure.
type Matcher interface {
	Match(ctx context.Context, locations []Location, travelMode string) []Location
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler, matcher Matcher) {
	requireUser := auth.RequireRole(auth.RoleUser)

	r.Post("/start", authMiddleware, requireUser, func(c *fiber.Ctx) error {
		var req struct {
			TripName string `json:"trip_name"`
		}
		if err := c.BodyParser(&req); err != nil || req.TripName == "" {
			return fiber.NewError(fiber.StatusBadRequest, "trip_name required")
		}
		trip, err := svc.StartTrip(c.Context(), userID(c), req.TripName)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"trip_id": trip.ID})
	})

	appendLocations := func(c *fiber.Ctx) error {
		var req struct {
			Locations []Location `json:"locations"`
		}
		if err := c.BodyParser(&req); err != nil || len(req.Locations) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "locations required")
		}
		if err := svc.AddLocations(c.Context(), c.Params("tripId"), userID(c), req.Locations); err != nil {
			return tripError(err)
		}
		return c.JSON(fiber.Map{"added": len(req.Locations)})
	}

	r.Post("/:tripId/locations", authMiddleware, requireUser, appendLocations)
	r.Post("/:tripId/locations/batch", authMiddleware, requireUser, appendLocations)

	r.Post("/:tripId/stop", authMiddleware, requireUser, func(c *fiber.Ctx) error {
		if err := svc.StopTrip(c.Context(), c.Params("tripId"), userID(c)); err != nil {
			return tripError(err)
		}
		return c.JSON(fiber.Map{"stopped": true})
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		target := userID(c)
		if c.Locals("role") == auth.RoleSuperuser {
			if q := c.Query("userId"); q != "" && q != "me" {
				target = q
			}
		}
		trips, err := svc.Trips(c.Context(), target)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"trips": trips})
	})

	r.Get("/:tripId", authMiddleware, func(c *fiber.Ctx) error {
		detail, err := svc.TripDetail(c.Context(), c.Params("tripId"))
		if err != nil {
			return tripError(err)
		}
		if c.Locals("role") != auth.RoleSuperuser && detail.UserID != userID(c) {
			return fiber.NewError(fiber.StatusForbidden, "forbidden")
		}
		if matcher != nil {
			detail.Locations = matcher.Match(c.Context(), detail.Locations, "driving")
		}
		return c.JSON(fiber.Map{"trip": detail})
	})

	r.Delete("/:tripId", authMiddleware, auth.RequireRole(auth.RoleSuperuser), func(c *fiber.Ctx) error {
		if err := svc.DeleteTrip(c.Context(), c.Params("tripId")); err != nil {
			return tripError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func tripError(err error) error {
	switch {
	case errors.Is(err, ErrTripNotFound):
		return fiber.NewError(fiber.StatusNotFound, "trip not found")
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, "forbidden")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
