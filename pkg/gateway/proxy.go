package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinicflow/waittime/pkg/common/logger"
	"github.com/clinicflow/waittime/pkg/common/middleware"
	"github.com/clinicflow/waittime/pkg/gateway/httpclient"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Proxy forwards requests unchanged to one backing service.
type Proxy struct {
	Name     string
	BaseURL  string
	Client   *http.Client
	Timeout  time.Duration
	Attempts int
}

func NewProxy(name, baseURL string, client *http.Client, timeout time.Duration) *Proxy {
	return &Proxy{
		Name:     name,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Client:   client,
		Timeout:  timeout,
		Attempts: 3,
	}
}

// RegisterRoutes maps the public API onto the serving and training services.
func RegisterRoutes(router *mux.Router, serving, training *Proxy) {
	if serving == nil || training == nil {
		panic("gateway requires serving and training proxies")
	}
	router.Handle("/predict", serving).Methods(http.MethodPost)
	router.Handle("/model", serving).Methods(http.MethodGet)
	router.Handle("/predictions/recent", serving).Methods(http.MethodGet)
	router.Handle("/training/jobs", training).Methods(http.MethodPost, http.MethodGet)
	router.Handle("/training/jobs/{id}", training).Methods(http.MethodGet)
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := p.BaseURL + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	var payload []byte
	if r.Body != nil {
		var err error
		payload, err = io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.Timeout)
	defer cancel()

	corrID := r.Header.Get(middleware.RequestIDHeader)
	if corrID == "" {
		corrID = uuid.New().String()
	}

	// Only idempotent requests are retried; a repeated POST could queue a
	// second training job.
	attempts := 1
	if r.Method == http.MethodGet {
		attempts = p.Attempts
	}

	var resp *http.Response
	err := httpclient.Retry(ctx, attempts, 100*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, r.Method, target, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		copyHeaders(r, req, len(payload) > 0)
		req.Header.Set(middleware.RequestIDHeader, corrID)

		resp, err = p.Client.Do(req)
		return err
	})
	if err != nil {
		logger.Log.WithError(err).WithField("service", p.Name).Error("upstream request failed")
		http.Error(w, p.Name+" service unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		for _, value := range v {
			w.Header().Add(k, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Log.WithError(err).WithField("service", p.Name).Warn("failed to copy upstream response")
	}

	logger.Log.WithFields(map[string]interface{}{
		"service":    p.Name,
		"url":        target,
		"status":     resp.StatusCode,
		"request_id": corrID,
	}).Debug("Forwarded request")
}

func copyHeaders(src *http.Request, dst *http.Request, hasBody bool) {
	dst.Header = make(http.Header)
	for k, v := range src.Header {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		dst.Header[k] = append([]string(nil), v...)
	}
	if hasBody && dst.Header.Get("Content-Type") == "" {
		dst.Header.Set("Content-Type", "application/json")
	}
}
