package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/inbound"
	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/internal/store"
	"github.com/sells-group/prospectkeeper/internal/verify"
	anthropicpkg "github.com/sells-group/prospectkeeper/pkg/anthropic"
)

var servePort int

// apiServer holds the dependencies behind the HTTP routes. startBatch runs a
// verification batch in the background; nil disables the endpoint.
type apiServer struct {
	store      store.Store
	inbound    *inbound.Processor
	startBatch func(mode verify.Mode)
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/contacts", s.handleListContacts)
	r.Get("/contacts/review", s.handleReviewQueue)
	r.Post("/contacts/{id}/opt-out", s.handleOptOut)
	r.Get("/receipts", s.handleListReceipts)
	r.Post("/verify", s.handleStartBatch)
	r.Post("/inbound-email", s.handleInboundEmail)

	return r
}

func (s *apiServer) handleListContacts(w http.ResponseWriter, r *http.Request) {
	filter := store.ContactFilter{Limit: 100}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = model.ContactStatus(v)
	}
	if v := r.URL.Query().Get("needs_review"); v != "" {
		needsReview := v == "true"
		filter.NeedsReview = &needsReview
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	contacts, err := s.store.ListContacts(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list contacts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list contacts failed")
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *apiServer) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	needsReview := true
	contacts, err := s.store.ListContacts(r.Context(), store.ContactFilter{NeedsReview: &needsReview})
	if err != nil {
		zap.L().Error("api: list review queue", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list review queue failed")
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *apiServer) handleOptOut(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	contact, err := s.store.GetContact(r.Context(), id)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		zap.L().Error("api: load contact", zap.String("contact_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "load contact failed")
		return
	}

	if !contact.IsOptedOut() {
		contact.OptOut()
		if err := s.store.SaveContact(r.Context(), contact); err != nil {
			zap.L().Error("api: save opt-out", zap.String("contact_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "save contact failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"contact_id": contact.ID, "status": string(contact.Status)})
}

func (s *apiServer) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.store.ListReceipts(r.Context(), 20)
	if err != nil {
		zap.L().Error("api: list receipts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list receipts failed")
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (s *apiServer) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	if s.startBatch == nil {
		writeError(w, http.StatusServiceUnavailable, "batch runner not configured")
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := verify.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	go s.startBatch(mode)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "mode": string(mode)})
}

func (s *apiServer) handleInboundEmail(w http.ResponseWriter, r *http.Request) {
	var reply inbound.Reply
	if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := s.inbound.Process(r.Context(), reply)
	if err != nil {
		// Unknown senders are expected noise; report 200 so the provider
		// does not retry.
		zap.L().Warn("api: inbound reply dropped", zap.String("from", reply.From), zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and inbound email webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		llm := anthropicpkg.NewClient(cfg.Anthropic.Key)
		api := &apiServer{
			store:   st,
			inbound: inbound.NewProcessor(st, llm, cfg.Anthropic.HaikuModel),
			startBatch: func(mode verify.Mode) {
				runBackgroundBatch(ctx, st, mode)
			},
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// runBackgroundBatch runs one verification batch for an async API request.
// Failures are logged; the caller already received a 202.
func runBackgroundBatch(ctx context.Context, st store.Store, mode verify.Mode) {
	contacts, err := st.GetContactsForVerification(ctx, cfg.Verify.BatchSize)
	if err != nil {
		zap.L().Error("api batch: load contacts", zap.Error(err))
		return
	}
	if len(contacts) == 0 {
		zap.L().Info("api batch: no contacts eligible")
		return
	}

	gateways, err := initGateways(mode)
	if err != nil {
		zap.L().Error("api batch: init gateways", zap.Error(err))
		return
	}

	var sink verify.Sink
	if cfg.Verify.WebhookURL != "" {
		sink = verify.NewWebhookSink(cfg.Verify.WebhookURL)
	}

	orch := verify.NewOrchestrator(st, verify.NewEngine(gateways), sink, cfg.Verify.Concurrency)
	result, err := orch.Run(ctx, contacts, mode)
	if err != nil {
		zap.L().Error("api batch: run failed", zap.Error(err))
		return
	}
	zap.L().Info("api batch: complete",
		zap.String("batch_id", result.Receipt.BatchID),
		zap.Int("processed", result.Receipt.ContactsProcessed),
		zap.Int("errors", len(result.Errors)))
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
