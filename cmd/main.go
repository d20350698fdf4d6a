package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nvkhoa/eduassess/config"
	"github.com/nvkhoa/eduassess/database"
	adminctrl "github.com/nvkhoa/eduassess/internal/controller/admin"
	userctrl "github.com/nvkhoa/eduassess/internal/controller/user"
	"github.com/nvkhoa/eduassess/internal/evaluator"
	"github.com/nvkhoa/eduassess/internal/logger"
	"github.com/nvkhoa/eduassess/internal/model"
	"github.com/nvkhoa/eduassess/internal/notify"
	"github.com/nvkhoa/eduassess/internal/repository"
	"github.com/nvkhoa/eduassess/internal/service"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Assessment Evaluation API
// @version 1.0
// @description Automatic test grading, attempt lifecycle management and task submission handling.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core Application Components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
			notify.NewNotifier,
			func() *evaluator.Engine { return evaluator.NewEngine() },
		),

		// Repositories Layer
		fx.Provide(
			repository.NewTestRepository,
			repository.NewQuestionRepository,
			repository.NewTestAttemptRepository,
			repository.NewTaskRepository,
			repository.NewTaskSubmissionRepository,
		),

		// Services Layer
		fx.Provide(
			service.NewScoringService,
			service.NewPolicyService,
			service.NewAdminService,
			service.NewUserTestService,
			service.NewTestAttemptService,
			service.NewTaskSubmissionService,
		),

		// API Controllers Layer
		fx.Provide(
			adminctrl.NewAdminController,
			userctrl.NewUserTestController,
			userctrl.NewTaskSubmissionController,
		),

		fx.Invoke(ConfigureLogLevel),
		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
		fx.Invoke(StartTimeoutSweeper),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func ConfigureLogLevel(cfg *config.Config) {
	logger.SetLevel(cfg.LogLevel)
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Student-ID", "X-Grader-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	adminCtrl *adminctrl.AdminController,
	userTestCtrl *userctrl.UserTestController,
	taskSubCtrl *userctrl.TaskSubmissionController,
) {
	adminAPIGroup := router.Group("/api/v1/admin")
	{
		adminAPIGroup.POST("/tests", adminCtrl.CreateTest)
		adminAPIGroup.POST("/tasks", adminCtrl.CreateTask)
		adminAPIGroup.POST("/submissions/:submission_id/grade", adminCtrl.GradeSubmission)
	}

	userAPIGroup := router.Group("/api/v1")
	{
		userAPIGroup.GET("/tests", userTestCtrl.GetAllTests)
		userAPIGroup.GET("/tests/:test_id", userTestCtrl.GetTestDetails)

		userAPIGroup.POST("/tests/:test_id/attempts", userTestCtrl.StartTestAttempt)
		userAPIGroup.GET("/tests/:test_id/my-attempts", userTestCtrl.GetMyTestAttempts)
		userAPIGroup.PUT("/test-attempts/:attempt_id/answers", userTestCtrl.SaveAttemptAnswers)
		userAPIGroup.POST("/test-attempts/:attempt_id/submit", userTestCtrl.SubmitTestAttempt)
		userAPIGroup.GET("/test-attempts/:attempt_id", userTestCtrl.GetTestAttemptDetails)

		userAPIGroup.POST("/tasks/:task_id/submissions", taskSubCtrl.SubmitTask)
		userAPIGroup.GET("/tasks/:task_id/my-submissions", taskSubCtrl.GetMySubmissions)
		userAPIGroup.GET("/task-submissions/:submission_id", taskSubCtrl.GetSubmissionDetails)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Assessment API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

// StartTimeoutSweeper periodically times out in-progress attempts whose
// deadline has passed. Lazy detection on reads already covers attempts
// that are touched again; the sweeper catches abandoned ones.
func StartTimeoutSweeper(lc fx.Lifecycle, cfg *config.Config, attempts service.TestAttemptService) {
	interval := time.Duration(cfg.Sweep.IntervalSeconds) * time.Second
	if interval <= 0 {
		log.Info().Msg("Timeout sweeper disabled")
		return
	}

	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ticker := time.NewTicker(interval)
			go func() {
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						n, err := attempts.SweepExpiredAttempts()
						if err != nil {
							log.Error().Err(err).Msg("Timeout sweep failed")
						} else if n > 0 {
							log.Info().Int("timed_out", n).Msg("Timeout sweep completed")
						}
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Test{},
		&model.Question{},
		&model.TestAttempt{},
		&model.AttemptAnswer{},
		&model.Task{},
		&model.TaskSubmission{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
