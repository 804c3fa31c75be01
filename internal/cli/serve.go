package cli

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/danieljhkim/mirrorsync/internal/dispatch"
	"github.com/danieljhkim/mirrorsync/internal/events"
	"github.com/danieljhkim/mirrorsync/internal/signature"
)

const (
	// maxPayloadBytes is GitHub's own webhook payload cap.
	maxPayloadBytes = 25 << 20
	shutdownTimeout = 10 * time.Second
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive mirror push webhooks over HTTP",
	Long: `Run an HTTP server that applies push webhooks sent by mirrors.

Endpoints:
  POST /webhook     push payload (GitHub or GitLab format)
  GET  /healthz     liveness
  GET  /debug/vars  expvar counters

When serve.secret is set, deliveries must carry a matching GitHub
X-Hub-Signature-256 or GitLab X-Gitlab-Token header.

Deliveries are handled concurrently; updates of the same ref are serialised
by the lock service. git's stderr is always captured.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default serve.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	addr := serveAddr
	if addr == "" {
		addr = a.settings.ServeAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(a.dispatcher, signature.NewSecretVerifier(a.settings.ServeSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		klog.InfoS("Listening", "addr", addr, "repositories", len(a.registry.Names()))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		klog.InfoS("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// mirrorPushHandler is the part of *dispatch.Dispatcher the server needs.
type mirrorPushHandler interface {
	HandleMirrorPush(ctx context.Context, evs []events.Event, suppress bool) (*dispatch.Report, error)
}

func newServeMux(h mirrorPushHandler, verifier signature.Verifier) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /webhook", webhookHandler(h, verifier))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok\n")
	})
	mux.Handle("GET /debug/vars", expvar.Handler())
	return mux
}

func webhookHandler(h mirrorPushHandler, verifier signature.Verifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, err)
				return
			}
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}

		if err := verifier.Verify(r.Header, data); err != nil {
			klog.InfoS("Rejected unauthenticated webhook", "remote", r.RemoteAddr, "err", err)
			writeJSONError(w, http.StatusUnauthorized, err)
			return
		}

		evs, err := events.ParsePayload(data)
		if err != nil {
			klog.V(1).InfoS("Rejected webhook payload", "remote", r.RemoteAddr, "err", err)
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		if len(evs) == 0 {
			writeJSON(w, http.StatusOK, &dispatch.Report{Outcomes: []dispatch.Outcome{}})
			return
		}

		// a sender hanging up must not abort a half-done update
		report, err := h.HandleMirrorPush(context.WithoutCancel(r.Context()), evs, true)
		if report == nil {
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		status := http.StatusOK
		if err != nil {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, report)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.ErrorS(err, "Failed to write response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
