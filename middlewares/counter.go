package middlewares

import (
	"encoding/json"
	"time"

	"govdata-backend/tracking"

	"github.com/gofiber/fiber/v2"
)

// CacheHitKey is set in request locals by handlers that served a cache hit, so
// the counter can classify the request as CACHED.
const CacheHitKey = "cache_hit"

// ServiceIDKey optionally carries the resolved service id for the counter row.
const ServiceIDKey = "service_id"

// RequestCounter observes every request/response cycle and hands it to the
// recorder once the response has been computed. It never alters the response:
// handler errors pass through untouched and recorder failures are swallowed
// inside the recorder itself.
func RequestCounter(recorder *tracking.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if recorder.Excluded(path) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		errMsg := ""
		if err != nil {
			// The global error handler decides the final status; record what
			// we know at this point.
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
			errMsg = err.Error()
		}

		sample := tracking.Sample{
			Path:           path,
			Method:         c.Method(),
			IPAddress:      c.IP(),
			UserAgent:      c.Get(fiber.HeaderUserAgent),
			Params:         requestParams(c),
			RequestSize:    len(c.Body()),
			ResponseStatus: status,
			ResponseSize:   len(c.Response().Body()),
			ElapsedMs:      tracking.Elapsed(start),
			ErrorMessage:   errMsg,
			RateLimited:    status == fiber.StatusTooManyRequests,
		}

		if caller, ok := CallerFromCtx(c); ok {
			sample.TenantID = caller.TenantRef()
			sample.UserID = caller.UserRef()
			sample.ManagementUserID = caller.ManagementRef()
		}
		if hit, ok := c.Locals(CacheHitKey).(bool); ok {
			sample.CacheHit = hit
		}
		if serviceID, ok := c.Locals(ServiceIDKey).(uint); ok {
			sample.ServiceID = &serviceID
		}

		recorder.Observe(sample)
		return err
	}
}

// requestParams merges query args and a JSON body (when present) into one
// parameter map for sanitized persistence.
func requestParams(c *fiber.Ctx) map[string]any {
	params := make(map[string]any)
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})
	if body := c.Body(); len(body) > 0 {
		var parsed map[string]any
		if err := json.Unmarshal(body, &parsed); err == nil {
			for k, v := range parsed {
				params[k] = v
			}
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}
