// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package web serves the published frames over HTTP.
package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/maruel/thermocam/broadcast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// Options configures the Server.
type Options struct {
	Addr         string        // Default: ":5000"
	Quality      int           // JPEG quality. Default: 95
	PollInterval time.Duration // How often streams look for a new frame. Default: 20ms
	// Registry is served on /metrics and receives the request counter. A new
	// one is created if nil.
	Registry *prometheus.Registry
}

// Server exposes a Broadcaster.
type Server struct {
	bc   *broadcast.Broadcaster
	opts Options
	log  *slog.Logger
	h    http.Handler
}

// New returns a Server for the frames published on bc.
func New(bc *broadcast.Broadcaster, opts *Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{bc: bc, opts: *opts, log: log}
	if s.opts.Addr == "" {
		s.opts.Addr = ":5000"
	}
	if s.opts.Quality <= 0 || s.opts.Quality > 100 {
		s.opts.Quality = 95
	}
	if s.opts.PollInterval <= 0 {
		s.opts.PollInterval = 20 * time.Millisecond
	}
	if s.opts.Registry == nil {
		s.opts.Registry = prometheus.NewRegistry()
	}
	requests := requestCounter(s.opts.Registry)
	count := func(route string, h http.Handler) http.Handler {
		return promhttp.InstrumentHandlerCounter(requests.MustCurryWith(prometheus.Labels{"route": route}), h)
	}
	r := mux.NewRouter()
	r.Handle("/", count("root", http.HandlerFunc(s.root))).Methods(http.MethodGet)
	r.Handle("/video_feed", count("video_feed", http.HandlerFunc(s.videoFeed))).Methods(http.MethodGet)
	r.Handle("/still.jpg", count("still", http.HandlerFunc(s.still))).Methods(http.MethodGet)
	r.Handle("/zones", count("zones", http.HandlerFunc(s.zones))).Methods(http.MethodGet)
	r.Handle("/stream", count("stream", websocket.Handler(s.stream)))
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	w := &logWriter{log: log}
	s.h = handlers.RecoveryHandler(handlers.RecoveryLogger(w), handlers.PrintRecoveryStack(true))(handlers.CombinedLoggingHandler(w, r))
	return s
}

// Handler returns the HTTP handler with all the routes.
func (s *Server) Handler() http.Handler {
	return s.h
}

// Run serves until ctx is done. Streaming requests end with ctx.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve is like Run on an existing listener. l is closed on return.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.h,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("listening", "addr", l.Addr().String())
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(sctx)
	if err2 := <-errc; !errors.Is(err2, http.ErrServerClosed) && err == nil {
		err = err2
	}
	return err
}

// requestCounter registers the request counter on reg, or returns the one
// already there.
func requestCounter(reg prometheus.Registerer) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thermocam_http_requests_total",
		Help: "HTTP requests served, by route and status code.",
	}, []string{"route", "code"})
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

// Metadata is the JSON description of a frame.
type Metadata struct {
	Seq      uint64             `json:"seq"`
	Captured time.Time          `json:"captured"`
	Min      float64            `json:"min"`
	Max      float64            `json:"max"`
	Zones    map[string]float64 `json:"zones"`
}

func metadataOf(f *broadcast.Frame) *Metadata {
	return &Metadata{Seq: f.Seq, Captured: f.Captured, Min: f.Range.Min, Max: f.Range.Max, Zones: f.Zones.Map()}
}

//

var rootTmpl = template.Must(template.New("root").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>thermocam</title>
	<style>
		img.large {
			width: 600px;
			height: auto;
		}
	</style>
	<script>
	function refresh() {
		fetch("/zones").then(r => r.ok ? r.json() : null).then(m => {
			if (m) {
				document.getElementById("zones").textContent = JSON.stringify(m.zones);
				document.getElementById("range").textContent = m.min.toFixed(2) + " - " + m.max.toFixed(2);
			}
		}).finally(() => setTimeout(refresh, 1000));
	}
	</script>
</head>
<body onload="refresh()">
	<img class="large" src="/video_feed"></img>
	<br>
	Range: <span id="range">{{.Range}}</span>
	<br>
	Zones: <span id="zones"></span>
</body>
</html>`))

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	data := struct{ Range string }{"waiting for first frame"}
	if f, ok := s.bc.Snapshot(); ok {
		data.Range = f.Range.String()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := rootTmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) videoFeed(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", broadcast.ContentType)
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(http.StatusOK)
	fl.Flush()
	for part := range s.bc.Stream(r.Context(), broadcast.Options{PollInterval: s.opts.PollInterval, Quality: s.opts.Quality}) {
		if _, err := w.Write(part); err != nil {
			s.log.Debug("video feed client gone", "remote", r.RemoteAddr, "err", err)
			return
		}
		fl.Flush()
	}
}

func (s *Server) still(w http.ResponseWriter, r *http.Request) {
	f, ok := s.bc.Snapshot()
	if !ok {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	data, err := broadcast.EncodeJPEG(f.Img, s.opts.Quality)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	_, _ = w.Write(data)
}

func (s *Server) zones(w http.ResponseWriter, r *http.Request) {
	f, ok := s.bc.Snapshot()
	if !ok {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	if err := json.NewEncoder(w).Encode(metadataOf(f)); err != nil {
		s.log.Debug("zones", "err", err)
	}
}

// stream pushes each new frame as a websocket message "I" followed by the
// base64 encoded JPEG, then a message "M" followed by the JSON metadata.
func (s *Server) stream(ws *websocket.Conn) {
	defer ws.Close()
	remote := ws.Request().RemoteAddr
	s.log.Info("websocket connected", "remote", remote)
	frames := make(chan *broadcast.Frame, 1)
	cancel := s.bc.Subscribe("ws "+remote, func(f *broadcast.Frame) {
		// Only the subscriber goroutine sends, so keeping the latest frame
		// can't race.
		select {
		case frames <- f:
			return
		default:
		}
		select {
		case <-frames:
		default:
		}
		frames <- f
	})
	defer cancel()
	ctx := ws.Request().Context()
	var buf bytes.Buffer
	for {
		var f *broadcast.Frame
		select {
		case <-ctx.Done():
			return
		case <-s.bc.Done():
			return
		case f = <-frames:
		}
		img, err := broadcast.EncodeJPEG(f.Img, s.opts.Quality)
		if err != nil {
			s.log.Warn("websocket encode", "err", err)
			continue
		}
		buf.Reset()
		buf.WriteByte('I')
		enc := base64.NewEncoder(base64.StdEncoding, &buf)
		_, _ = enc.Write(img)
		_ = enc.Close()
		if _, err = ws.Write(buf.Bytes()); err == nil {
			buf.Reset()
			buf.WriteByte('M')
			if err = json.NewEncoder(&buf).Encode(metadataOf(f)); err == nil {
				_, err = ws.Write(buf.Bytes())
			}
		}
		if err != nil {
			s.log.Info("websocket disconnected", "remote", remote, "err", err)
			return
		}
	}
}

// logWriter forwards the access log lines to the structured logger.
type logWriter struct {
	log *slog.Logger
}

func (l *logWriter) Write(p []byte) (int, error) {
	l.log.Info("http", "line", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Println implements handlers.RecoveryHandlerLogger.
func (l *logWriter) Println(v ...interface{}) {
	l.log.Error("panic in handler", "err", fmt.Sprint(v...))
}
