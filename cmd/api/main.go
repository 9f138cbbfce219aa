// @title           Rights Chat API
// @version         1.0
// @description     Retrieval augmented legal rights chatbot. Chat turns run as background jobs, the UI polls their status.
// @termsOfService  http://swagger.io/terms/

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/data/store"
	jobmodel "github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/internal/handlers"
	"github.com/akolanti/rightsbot/internal/job"
	"github.com/akolanti/rightsbot/internal/mcpserver"
	"github.com/akolanti/rightsbot/internal/middleware"
	"github.com/akolanti/rightsbot/internal/rag"
	"github.com/akolanti/rightsbot/internal/rag/index"
	"github.com/akolanti/rightsbot/internal/rag/vectorDB"
	"github.com/akolanti/rightsbot/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/rightsbot/internal/rag/vectorDB/pgvectorDB"
	"github.com/akolanti/rightsbot/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/rightsbot/internal/server"
	"github.com/akolanti/rightsbot/internal/worker"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

var (
	listenAddr        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	config.LoadEnv()
	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.EnvOrDefault("LISTEN_ADDR", config.ServerListenAddr), "server listen address")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init job service and session stores, a nil store falls back to memory inside the job service
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		DispatcherChannel: dispatcherChannel,
	}
	jobStore := store.GetRedisJobStore(serviceContext)
	transcriptStore := store.GetRedisTranscriptStore(serviceContext)
	if jobStore != nil && transcriptStore != nil {
		serviceConfig.JobStore = jobStore
		serviceConfig.TranscriptStore = transcriptStore
	} else if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
		logger.Error("Redis stores are offline")
		return
	}
	logger.Info("Starting job service")
	service := job.InitJobService(serviceConfig)

	builder := index.NewBuilder(config.DataDir(), index.ProvidersFromEnv(), selectVectorDB(serviceContext, logger))
	ragService := rag.NewService(builder)

	handlers.InitJobHandler(service, ragService)

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//the index is built once up front, a failure leaves the UI reporting no chat engine
	handlers.WarmEngine()

	middleware.StartLimiterSweeper(serviceContext)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr, mcpserver.NewHandler(ragService))

	<-stopExecution
	logger.Info("Server stopped")
}

// selectVectorDB picks VECTOR_BACKEND and falls back to the in-process store when it is unreachable
func selectVectorDB(ctx context.Context, logger *logger_i.Logger) vectorDB.DataProcessor {
	backend := strings.ToLower(config.EnvOrDefault("VECTOR_BACKEND", config.VectorBackendMemory))
	switch backend {
	case config.VectorBackendQdrant:
		if db := qdrantDB.GetQdrantClient(ctx); db != nil {
			logger.Info("Using qdrant vector store")
			return db
		}
	case config.VectorBackendPgvector:
		if db := pgvectorDB.GetPgvectorStore(ctx); db != nil {
			logger.Info("Using pgvector store")
			return db
		}
	case config.VectorBackendMemory:
		logger.Info("Using in-memory vector store")
		return memoryDB.New()
	default:
		logger.Warn("Unknown vector backend", "backend", backend)
	}
	logger.Warn("Vector backend unavailable, falling back to memory", "backend", backend)
	return memoryDB.New()
}
