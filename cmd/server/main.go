package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lychee-technology/foundry"
	"github.com/lychee-technology/foundry/factory"
)

// Server exposes the engine over HTTP
type Server struct {
	svc       foundry.Service
	mux       *http.ServeMux
	jwtSecret []byte
}

// NewServer creates a new Server instance
func NewServer(svc foundry.Service, jwtSecret []byte) *Server {
	return &Server{
		svc:       svc,
		mux:       http.NewServeMux(),
		jwtSecret: jwtSecret,
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/api/v1/_batch", s.handleBatch)
	s.mux.HandleFunc("/api/v1/", s.apiHandler)
}

// Start starts the HTTP server on the given port
func (s *Server) Start(port string) error {
	zap.S().Infow("starting server", "port", port)
	return http.ListenAndServe(":"+port, s.mux)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	config := foundry.DefaultConfig()
	config.Database = foundry.DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		Database:        getEnv("DB_NAME", "foundry"),
		Username:        getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxConnections:  getEnvInt("DB_MAX_CONNECTIONS", 25),
		ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_SECONDS", 3600)) * time.Second,
		Timeout:         time.Duration(getEnvInt("DB_TIMEOUT_SECONDS", 30)) * time.Second,
	}
	config.Model.Path = getEnv("MODEL_PATH", "model.yaml")
	config.Batch.MaxOperations = getEnvInt("BATCH_MAX_OPERATIONS", 100)

	pool, err := createDatabasePool(config.Database)
	if err != nil {
		sugar.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	svc, err := factory.NewService(config, pool)
	if err != nil {
		sugar.Fatalf("failed to create service: %v", err)
	}

	server := NewServer(svc, []byte(getEnv("JWT_SECRET", "")))
	server.RegisterRoutes()

	port := getEnv("PORT", "8080")
	if err := server.Start(port); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}

// createDatabasePool creates a PostgreSQL connection pool
func createDatabasePool(config foundry.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
		config.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, foundry.NewConnectionError("failed to parse pool config", err)
	}
	poolConfig.MaxConns = int32(config.MaxConnections)
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, foundry.NewConnectionError("failed to create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, foundry.NewConnectionError("failed to ping database", err)
	}
	return pool, nil
}
