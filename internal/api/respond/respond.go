package respond

import (
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"
)

// ProcessedHeader tells clients whether the returned media was changed.
const ProcessedHeader = "X-Watermark-Processed"

// Success represents a standard structure for successful responses.
type Success struct {
	Result interface{} `json:"result"`
}

// Error represents a standard structure for error responses.
type Error struct {
	Message string `json:"message"`
}

// JSON sends a JSON response with the specified HTTP status code and data.
func JSON(c *ginext.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK sends a 200 OK JSON response, wrapping the given result in a Success struct.
func OK(c *ginext.Context, result interface{}) {
	JSON(c, http.StatusOK, Success{Result: result})
}

// Created sends a 201 Created JSON response, wrapping the given result in a Success struct.
func Created(c *ginext.Context, result interface{}) {
	JSON(c, http.StatusCreated, Success{Result: result})
}

// Fail sends an error JSON response with the specified HTTP status code.
func Fail(c *ginext.Context, status int, err error) {
	JSON(c, status, Error{Message: err.Error()})
}

// Media writes raw media bytes and marks whether they were watermarked.
func Media(c *ginext.Context, contentType string, data []byte, processed bool) {
	c.Header(ProcessedHeader, strconv.FormatBool(processed))
	c.Data(http.StatusOK, contentType, data)
}
