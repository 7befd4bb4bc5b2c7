package server

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
)

// New returns an HTTP server for the router. Timeouts leave room for
// large uploads and video transcodes.
func New(addr string, router *ginext.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
