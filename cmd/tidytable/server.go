package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/tidytable/tidytable/audit"
	"github.com/tidytable/tidytable/clean"
	"github.com/tidytable/tidytable/dbopen"
	"github.com/tidytable/tidytable/kit"
	"github.com/tidytable/tidytable/shield"
	"github.com/tidytable/tidytable/transform"
	"github.com/tidytable/tidytable/wrangle"
)

func serve(cfg *wrangle.Config) error {
	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Audit DB.
	db, err := dbopen.Open(cfg.AuditDB, dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("audit db: %w", err)
	}
	defer db.Close()

	auditor := audit.NewSQLiteLogger(db)
	if err := auditor.Init(); err != nil {
		return fmt.Errorf("audit init: %w", err)
	}
	defer auditor.Close()

	// Service.
	svc, err := wrangle.New(cfg, auditor, logger)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}

	// Optional MCP over stdio.
	if cfg.MCPEnabled {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "tidytable",
			Version: version,
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	// Rate limiter.
	limiter := shield.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, "/health")
	limiter.StartGC(ctx.Done(), time.Minute)

	r := router(svc, cfg, limiter)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func router(svc *wrangle.Service, cfg *wrangle.Config, limiter *shield.RateLimiter) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultStack(cfg.MaxUpload) {
		r.Use(mw)
	}
	r.Use(limiter.Middleware)
	r.Use(kitContext)

	// Endpoints shared with the MCP transport; auditing happens inside.
	profileEP := svc.ProfileEndpoint()
	historyEP := svc.HistoryEndpoint()
	revertEP := svc.RevertEndpoint()
	summaryEP := svc.SummaryEndpoint()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Upload: one multipart chunk per request.
	r.Post("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file_chunk")
		if err != nil {
			writeError(w, 400, err)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := svc.Upload(r.Context(), wrangle.UploadChunk{
			UploadID:    r.FormValue("upload_id"),
			ChunkIndex:  formInt(r, "chunk_index"),
			TotalChunks: formInt(r, "total_chunks"),
			Filename:    r.FormValue("original_filename"),
			Data:        data,
		})
		if err != nil {
			writeError(w, wrangle.HTTPStatus(err), err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Get("/api/data", func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Preview(r.Context(), wrangle.PreviewOptions{
			Page:      queryInt(r, "page", 1),
			Limit:     queryInt(r, "limit", 0),
			SortBy:    r.URL.Query().Get("sort_by"),
			SortOrder: r.URL.Query().Get("sort_order"),
			Filter:    r.URL.Query().Get("filter_val"),
		})
		if err != nil {
			writeError(w, wrangle.HTTPStatus(err), err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Post("/api/edit-cell", func(w http.ResponseWriter, r *http.Request) {
		var req wrangle.EditCellRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := svc.EditCell(r.Context(), req)
		if err != nil {
			writeError(w, wrangle.HTTPStatus(err), err)
			return
		}
		writeJSON(w, 200, res)
	})

	// Export streams the dataset as a file download.
	r.Post("/api/export", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Format string `json:"format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := svc.Export(r.Context(), req.Format)
		if err != nil {
			writeError(w, wrangle.HTTPStatus(err), err)
			return
		}
		w.Header().Set("Content-Type", res.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		w.WriteHeader(200)
		w.Write(res.Data)
	})

	r.Route("/api/clean", func(r chi.Router) {
		r.Post("/handle-missing", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Method    string   `json:"method"`
				Columns   []string `json:"columns"`
				FillValue any      `json:"fill_value"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.CleanMissing(r.Context(), clean.MissingOptions{
				Method: req.Method, Columns: req.Columns, FillValue: req.FillValue,
			})
			respond(w, res, err)
		})

		r.Post("/remove-duplicates", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Columns []string `json:"columns"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.Dedupe(r.Context(), req.Columns)
			respond(w, res, err)
		})

		r.Post("/handle-outliers", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Method  string   `json:"method"`
				Columns []string `json:"columns"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.Outliers(r.Context(), clean.OutlierOptions{
				Method: req.Method, Columns: req.Columns,
			})
			respond(w, res, err)
		})

		r.Post("/string-ops", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Operation string   `json:"operation"`
				Columns   []string `json:"columns"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.StringOps(r.Context(), req.Operation, req.Columns)
			respond(w, res, err)
		})

		r.Post("/find-replace", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Find      string   `json:"find"`
				Replace   string   `json:"replace"`
				Columns   []string `json:"columns"`
				MatchCase bool     `json:"match_case"`
				UseRegex  bool     `json:"use_regex"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.FindReplace(r.Context(), clean.FindReplaceOptions{
				Find: req.Find, Replace: req.Replace, Columns: req.Columns,
				MatchCase: req.MatchCase, UseRegex: req.UseRegex,
			})
			respond(w, res, err)
		})

		r.Post("/validate-emails", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Action  string   `json:"action"`
				Columns []string `json:"columns"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.ValidateEmails(r.Context(), req.Action, req.Columns)
			respond(w, res, err)
		})

		r.Post("/format-phones", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Columns []string `json:"columns"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.FormatPhones(r.Context(), req.Columns)
			respond(w, res, err)
		})
	})

	r.Route("/api/transform", func(r chi.Router) {
		r.Post("/sort", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Columns []string `json:"columns"`
				Order   string   `json:"order"` // "asc" (default) or "desc"
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.Sort(r.Context(), req.Columns, req.Order != "desc")
			respond(w, res, err)
		})

		r.Post("/group-by", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				GroupColumns []string `json:"group_columns"`
				AggColumn    string   `json:"agg_column"`
				AggFunc      string   `json:"agg_func"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.GroupBy(r.Context(), transform.GroupByOptions{
				GroupColumns: req.GroupColumns, AggColumn: req.AggColumn, AggFunc: req.AggFunc,
			})
			respond(w, res, err)
		})

		r.Post("/pivot", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				IndexColumn   string `json:"index_column"`
				ColumnsColumn string `json:"columns_column"`
				ValuesColumn  string `json:"values_column"`
				AggFunc       string `json:"agg_func"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.Pivot(r.Context(), transform.PivotOptions{
				IndexColumn: req.IndexColumn, ColumnsColumn: req.ColumnsColumn,
				ValuesColumn: req.ValuesColumn, AggFunc: req.AggFunc,
			})
			respond(w, res, err)
		})

		r.Post("/calculated-column", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Name       string `json:"name"`
				Expression string `json:"expression"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := svc.CalculatedColumn(r.Context(), req.Name, req.Expression)
			respond(w, res, err)
		})
	})

	r.Get("/api/profile", func(w http.ResponseWriter, r *http.Request) {
		rep, err := profileEP(r.Context(), nil)
		if err != nil {
			writeError(w, wrangle.HTTPStatus(err), err)
			return
		}
		writeJSON(w, 200, rep)
	})

	r.Get("/api/history", func(w http.ResponseWriter, r *http.Request) {
		entries, err := historyEP(r.Context(), nil)
		if err != nil {
			writeError(w, wrangle.HTTPStatus(err), err)
			return
		}
		writeJSON(w, 200, entries)
	})

	r.Post("/api/history/revert", func(w http.ResponseWriter, r *http.Request) {
		var req wrangle.RevertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := revertEP(r.Context(), &req)
		if err != nil {
			writeError(w, wrangle.HTTPStatus(err), err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Post("/api/history/clear", func(w http.ResponseWriter, r *http.Request) {
		svc.ClearHistory(r.Context())
		writeJSON(w, 200, map[string]string{"status": "cleared"})
	})

	r.Post("/api/session/save", func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.SessionSave(r.Context())
		if err != nil {
			writeError(w, wrangle.HTTPStatus(err), err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="session.json"`)
		w.WriteHeader(200)
		w.Write(data)
	})

	// The request body is the session document itself.
	r.Post("/api/session/load", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := svc.SessionLoad(r.Context(), data)
		respond(w, res, err)
	})

	r.Post("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
			Style   string `json:"style"` // paragraph (default), numbered, plain
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		reply, err := summaryEP(r.Context(), &wrangle.SummaryRequest{Style: req.Style})
		if err != nil {
			writeError(w, wrangle.HTTPStatus(err), err)
			return
		}
		writeJSON(w, 200, reply)
	})

	return r
}

// kitContext carries the chi request ID into the service-layer context so
// audit events record it.
func kitContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- Helpers ---

// respond writes an operation result or maps the error to a status code.
func respond(w http.ResponseWriter, res *wrangle.OpResult, err error) {
	if err != nil {
		writeError(w, wrangle.HTTPStatus(err), err)
		return
	}
	writeJSON(w, 200, res)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func formInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.FormValue(key))
	return v
}
