package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/scoreframes/pkg/buildinfo"
	"github.com/matzehuels/scoreframes/pkg/errors"
	"github.com/matzehuels/scoreframes/pkg/observability"
	"github.com/matzehuels/scoreframes/pkg/pipeline"
)

const (
	defaultServeAddr = "127.0.0.1:8610"
	shutdownTimeout  = 5 * time.Second
)

// serveCommand creates the serve command, a read-only HTTP server for
// device loaders that pull frames over the network.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [output]",
		Short: "Serve the frames of a run over HTTP",
		Long: `Serve the frames of a finished run over HTTP.

Routes:
  GET /manifest          run manifest (JSON)
  GET /frames            frame index (JSON)
  GET /frames/{index}    frame bitmap (image/bmp)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := pipeline.ReadManifest(args[0]); err != nil {
				return err
			}
			ln, err := listenFrames(addr)
			if err != nil {
				return err
			}
			printSuccess("Serving %s", args[0])
			printKeyValue("Address", "http://"+ln.Addr().String())
			return serveFrames(cmd.Context(), ln, newFrameServer(args[0], loggerFromContext(cmd.Context())))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultServeAddr, "listen address")
	return cmd
}

// listenFrames opens the TCP listener for the frame server.
func listenFrames(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, err, "listen on %s", addr)
	}
	return ln, nil
}

// serveFrames serves h on ln until ctx is cancelled.
func serveFrames(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

// =============================================================================
// Frame Server
// =============================================================================

type frameServer struct {
	dir    string
	logger *log.Logger
}

// frameEntry is one element of the /frames listing.
type frameEntry struct {
	pipeline.Frame
	URL string `json:"url"`
}

// newFrameServer returns the router for the run rooted at dir. The manifest
// is re-read per request so a rerun into dir is picked up without restart.
func newFrameServer(dir string, logger *log.Logger) http.Handler {
	s := &frameServer{dir: dir, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Get("/manifest", s.handleManifest)
	r.Get("/frames", s.handleFrames)
	r.Get("/frames/{index}", s.handleFrame)
	return r
}

// observe sets the Server header, reports to the HTTP hooks and logs each
// request at debug level.
func (s *frameServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)
		w.Header().Set("Server", buildinfo.UserAgent())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status, "elapsed", elapsed.Round(time.Microsecond))
	})
}

func (s *frameServer) handleManifest(w http.ResponseWriter, r *http.Request) {
	m, err := pipeline.ReadManifest(s.dir)
	if err != nil {
		http.Error(w, "manifest unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, m)
}

func (s *frameServer) handleFrames(w http.ResponseWriter, r *http.Request) {
	m, err := pipeline.ReadManifest(s.dir)
	if err != nil {
		http.Error(w, "manifest unavailable", http.StatusServiceUnavailable)
		return
	}
	entries := make([]frameEntry, len(m.Frames))
	for i, f := range m.Frames {
		entries[i] = frameEntry{Frame: f, URL: fmt.Sprintf("/frames/%d", f.Index)}
	}
	writeJSON(w, entries)
}

func (s *frameServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		http.Error(w, "frame index must be a non-negative integer", http.StatusBadRequest)
		return
	}
	m, err := pipeline.ReadManifest(s.dir)
	if err != nil {
		http.Error(w, "manifest unavailable", http.StatusServiceUnavailable)
		return
	}
	if index >= len(m.Frames) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/bmp")
	http.ServeFile(w, r, filepath.Join(s.dir, filepath.FromSlash(m.Frames[index].Path)))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
