package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relaycrm/automation"
	"github.com/relaycrm/automation/engine"
	"github.com/relaycrm/automation/example/crm"
	"github.com/relaycrm/automation/integrations"
	"github.com/relaycrm/automation/store"
)

var wfEngine *engine.Engine

// eventRequest is the body of POST /api/v1/events, mirroring the domain
// events the host CRM emits.
type eventRequest struct {
	TenantID string                 `json:"tenantId"`
	Trigger  string                 `json:"trigger"`
	Data     map[string]interface{} `json:"data"`
	UserID   string                 `json:"userId"`
}

// initializeApp wires the engine against either DynamoDB (when
// AUTOMATION_TABLE is set) or the in-memory store seeded with demo data.
func initializeApp() {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	var st automation.Store
	registry := integrations.NewRegistry(http.DefaultClient)

	if tableName := os.Getenv("AUTOMATION_TABLE"); tableName != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load AWS config")
		}
		st = store.NewDynamoDBStore(dynamodb.NewFromConfig(awsCfg), tableName)

		if bucket := os.Getenv("AUTOMATION_AUDIO_BUCKET"); bucket != "" {
			registry.Audio = integrations.NewS3AudioStore(
				s3.NewFromConfig(awsCfg), bucket, os.Getenv("AUTOMATION_AUDIO_BASE_URL"))
		}
	} else {
		memStore := store.NewMemoryStore()
		crm.SeedDemoData(memStore)
		st = memStore
		log.Info().Msg("Using in-memory store with demo tenant")
	}

	env, err := automation.LoadEnvFallback()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load environment fallbacks")
	}

	wfEngine = engine.NewEngine(
		st,
		integrations.NewStoreProvider(st, env),
		registry,
		engine.WithLogger(log.Logger),
	)

	log.Info().Msg("Automation engine initialized successfully")
}

// runDelayScheduler resumes overdue waiting_delay runs for the demo tenant.
func runDelayScheduler(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resumed, err := wfEngine.ResumeDueRuns(ctx, crm.DemoTenantID)
			if err != nil {
				log.Error().Err(err).Msg("Delay scheduler pass failed")
				continue
			}
			if len(resumed) > 0 {
				log.Info().Strs("run_ids", resumed).Msg("Resumed due runs")
			}
		}
	}
}

// registerRoutes registers all HTTP routes
func registerRoutes(app *fiber.App) {
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "relaycrm-automation-example",
			"version": "1.0.0",
		})
	})

	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":     "RelayCRM Automation Example Server",
			"version":     "1.0.0",
			"description": "Workflow automation engine demo",
			"endpoints": fiber.Map{
				"health":    "GET /health",
				"event":     "POST /api/v1/events",
				"getRun":    "GET /api/v1/runs/:runId",
				"resumeRun": "POST /api/v1/runs/:runId/resume",
			},
		})
	})

	v1 := app.Group("/api/v1")
	v1.Post("/events", handleEvent)

	runs := v1.Group("/runs")
	runs.Get("/:runId", handleGetRun)
	runs.Post("/:runId/resume", handleResumeRun)
}

// handleEvent routes one domain event through trigger matching and starts
// a run for every matching workflow.
func handleEvent(c fiber.Ctx) error {
	var req eventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.TenantID == "" {
		req.TenantID = crm.DemoTenantID
	}

	runIDs, err := wfEngine.CheckTriggers(
		c.Context(), req.TenantID, automation.TriggerType(req.Trigger), req.Data, req.UserID)
	if err != nil {
		log.Error().Err(err).Str("trigger", req.Trigger).Msg("Failed to route event")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to route event",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"runIds":  runIDs,
		"message": "Event routed successfully",
	})
}

// handleGetRun retrieves a run and its step executions
func handleGetRun(c fiber.Ctx) error {
	runID := c.Params("runId")
	tenantID := c.Query("tenantId", crm.DemoTenantID)

	run, err := wfEngine.GetRun(c.Context(), tenantID, runID)
	if err != nil {
		log.Error().Err(err).Str("runId", runID).Msg("Failed to get workflow run")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Run not found",
		})
	}

	execs, err := wfEngine.GetStepExecutions(c.Context(), tenantID, runID)
	if err != nil {
		log.Error().Err(err).Str("runId", runID).Msg("Failed to get step executions")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get step executions",
		})
	}

	return c.JSON(fiber.Map{
		"run":            run,
		"stepExecutions": execs,
	})
}

// handleResumeRun re-enters a suspended run, e.g. after an approval
// decision is recorded.
func handleResumeRun(c fiber.Ctx) error {
	runID := c.Params("runId")
	tenantID := c.Query("tenantId", crm.DemoTenantID)

	if err := wfEngine.ResumeRun(c.Context(), tenantID, runID); err != nil {
		log.Error().Err(err).Str("runId", runID).Msg("Failed to resume run")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"runId":   runID,
		"message": "Run resumed successfully",
	})
}

func main() {
	initializeApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runDelayScheduler(ctx)

	app := fiber.New()
	registerRoutes(app)

	go func() {
		if err := app.Listen(":8080"); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to shut down server")
	}
}
