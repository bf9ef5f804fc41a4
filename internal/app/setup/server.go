package setup

import (
	"net"
	"net/http"

	"github.com/LavaJover/keksswap-rate-service/internal/config"
)

func NewHTTPServer(cfg config.HTTPServer, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
