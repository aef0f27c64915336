package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reality-cli/internal/checker"
	"github.com/sells-group/reality-cli/internal/report"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve consensus reports and accept check triggers over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Set up routes
		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("GET /report/latest", func(w http.ResponseWriter, r *http.Request) {
			rep, err := env.Emitter.Latest()
			if err != nil {
				http.Error(w, `{"error":"failed to read latest report"}`, http.StatusInternalServerError)
				return
			}
			if rep == nil {
				http.Error(w, `{"error":"no report yet"}`, http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(rep)
		})

		mux.HandleFunc("GET /history", func(w http.ResponseWriter, r *http.Request) {
			entries, err := env.Store.ListHistory(r.Context(), 50)
			if err != nil {
				http.Error(w, `{"error":"failed to list history"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(entries)
		})

		mux.HandleFunc("POST /check", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Mode string `json:"mode"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.Mode == "" {
				req.Mode = string(checker.ModeQuick)
			}
			mode, err := checker.ParseMode(req.Mode)
			if err != nil {
				http.Error(w, `{"error":"unknown mode"}`, http.StatusBadRequest)
				return
			}

			// Run the check asynchronously; clients poll /report/latest.
			go func() {
				rep, err := env.Aggregator.Run(ctx, mode)
				if err != nil {
					zap.L().Error("triggered check failed", zap.String("mode", string(mode)), zap.Error(err))
					return
				}
				if err := env.Emitter.Emit(ctx, rep); err != nil {
					zap.L().Error("report persistence failed", zap.Error(err))
					return
				}
				zap.L().Info("triggered check complete",
					zap.String("mode", string(mode)),
					zap.Int("score", rep.ConsensusScore),
					zap.String("status", string(rep.Status)),
				)
				if err := report.Gate(rep); err != nil {
					zap.L().Warn("triggered check blocked", zap.Error(err))
				}
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "accepted",
				"mode":   string(mode),
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
