package handlers

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/gatewarden/internal/shared/logger"
	"github.com/orris-inc/gatewarden/internal/shared/utils"
)

// ProxyHandler forwards admitted requests to the upstream service.
type ProxyHandler struct {
	proxy  *httputil.ReverseProxy
	logger logger.Interface
}

// NewProxyHandler builds a handler for upstreamURL. An empty upstreamURL
// yields a handler that answers 404 for every admitted request.
func NewProxyHandler(upstreamURL string, log logger.Interface) (*ProxyHandler, error) {
	h := &ProxyHandler{logger: log}
	if upstreamURL == "" {
		return h, nil
	}

	target, err := url.Parse(upstreamURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", upstreamURL)
	}

	h.proxy = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Errorw("upstream request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"upstream", target.Host,
				"error", err,
			)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"success":false,"error":{"type":"error","message":"upstream unavailable"}}`))
		},
	}
	return h, nil
}

func (h *ProxyHandler) Handle(c *gin.Context) {
	if h.proxy == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "route not found")
		return
	}
	h.proxy.ServeHTTP(c.Writer, c.Request)
}
