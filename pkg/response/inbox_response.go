// Package response builds the JSON envelope every API endpoint returns.
package response

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Response is the standard API response structure.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Meta      *Meta       `json:"meta,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta describes a listing.
type Meta struct {
	Total  int    `json:"total"`
	Filter string `json:"filter,omitempty"`
	Sort   string `json:"sort,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Response{Success: true, Data: data})
}

func OKWithMeta(c *fiber.Ctx, data interface{}, meta *Meta) error {
	return c.JSON(Response{Success: true, Data: data, Meta: meta})
}

// Accepted is used for requests whose effect is delivered over SSE too.
func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(Response{Success: true, Data: data})
}

// Error renders a failure envelope. Handlers normally return errors and let
// the central error handler call this.
func Error(c *fiber.Ctx, status int, info ErrorInfo) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(Response{
		Success:   false,
		Error:     &info,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
