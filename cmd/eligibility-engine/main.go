// cmd/eligibility-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"eligibility-engine/internal/audit"
	"eligibility-engine/internal/candidates"
	"eligibility-engine/internal/common/camunda"
	"eligibility-engine/internal/common/config"
	"eligibility-engine/internal/common/database"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/common/observability"
	"eligibility-engine/internal/coverage"
	"eligibility-engine/internal/decision"
	"eligibility-engine/internal/ranking"
	"eligibility-engine/internal/rules"
	"eligibility-engine/internal/scoring"

	ee "eligibility-engine/internal/workers/eligibility/evaluate-eligibility"
	rc "eligibility-engine/internal/workers/eligibility/rank-candidates"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting eligibility engine...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("eligibility-engine")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional sink) ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Build the decision pipeline ---
	ruleStore := rules.NewStore(
		pg.DB,
		redis.Client,
		time.Duration(cfg.Engine.RuleCacheTTL)*time.Second,
		log,
	)
	evaluator := rules.NewEvaluator(ruleStore, log)

	modelStore := scoring.NewModelStore(pg.DB, log)
	scorer := scoring.NewProvider(
		modelStore,
		cfg.Engine.AttributionTopN,
		config.GetDuration(cfg.Engine.ScorerTimeout),
		log,
	)

	combiner := decision.NewCombiner(decision.CombinerConfig{
		RuleWeight:           cfg.Engine.RuleWeight,
		MLWeight:             cfg.Engine.MLWeight,
		ConflictLow:          cfg.Engine.ConflictLow,
		ConflictHigh:         cfg.Engine.ConflictHigh,
		ConfidenceThreshold:  cfg.Engine.ConfidenceThreshold,
		EligibilityThreshold: cfg.Engine.EligibilityThreshold,
	}, log)

	candidateSource := candidates.NewSource(
		pg.DB,
		redis.Client,
		time.Duration(cfg.Engine.AttributeCacheTTL)*time.Second,
		log,
	)

	historySink := audit.NewPostgresSink(pg.DB, log)
	sinks := []audit.Sink{historySink}
	if esClient != nil {
		sinks = append(sinks, audit.NewElasticsearchSink(esClient.Client, "", log))
	}

	service := decision.NewService(
		evaluator,
		scorer,
		combiner,
		cfg.Engine.BatchConcurrency,
		log,
		decision.WithAuditSinks(sinks...),
		decision.WithObservability(obs),
		decision.WithCandidateSource(candidateSource),
	)

	ranker := ranking.NewRanker(
		coverage.NewSource(pg.DB, log),
		candidateSource,
		ranking.Config{
			UnderCoverageBoost:    cfg.Engine.UnderCoverageBoost,
			ClusterBoostPerMember: cfg.Engine.ClusterBoostPerMember,
			ClusterBoostCap:       cfg.Engine.ClusterBoostCap,
		},
		log,
	)

	zapLog.Info("Decision pipeline initialized")

	// --- Register Workers ---
	var workers []*camunda.CamundaWorker

	if wcfg := cfg.Workers[ee.TaskType]; wcfg.Enabled {
		handler := ee.NewHandler(
			&ee.Config{
				Timeout: time.Duration(wcfg.Timeout) * time.Millisecond,
			},
			service, ruleStore, log,
		)
		workers = append(workers, camunda.NewWorker(
			zeebeClient, ee.TaskType, wcfg.MaxJobsActive,
			time.Duration(wcfg.Timeout)*time.Millisecond,
			handler.Handle, zapLog,
		))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", ee.TaskType))
	}

	if wcfg := cfg.Workers[rc.TaskType]; wcfg.Enabled {
		handler := rc.NewHandler(
			&rc.Config{
				Timeout:      time.Duration(wcfg.Timeout) * time.Millisecond,
				HistoryLimit: 5000,
			},
			ranker, historySink, log,
		)
		workers = append(workers, camunda.NewWorker(
			zeebeClient, rc.TaskType, wcfg.MaxJobsActive,
			time.Duration(wcfg.Timeout)*time.Millisecond,
			handler.Handle, zapLog,
		))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", rc.TaskType))
	}
	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Stop()
	}
	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Eligibility engine stopped gracefully")
}
