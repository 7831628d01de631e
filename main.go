package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pillnow/internal/access"
	"pillnow/internal/api"
	"pillnow/internal/config"
	"pillnow/internal/database"
	"pillnow/internal/email"
	"pillnow/internal/events"
	"pillnow/internal/middleware"
	"pillnow/internal/notify"
	"pillnow/internal/push"
	"pillnow/internal/realtime"
	"pillnow/internal/status"
	"pillnow/internal/store"
	"pillnow/internal/workers"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

var (
	db            *database.DB
	pushService   *push.FirebaseService
	hub           *realtime.Hub
	bus           *events.Bus
	workerManager *workers.WorkerManager
	startTime     time.Time
	serverLogs    []string
	logsMutex     sync.RWMutex
)

const maxLogs = 100

type logWriter struct{}

func (lw logWriter) Write(p []byte) (n int, err error) {
	logsMutex.Lock()
	defer logsMutex.Unlock()

	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}

	timestamp := time.Now().Format("15:04:05")
	logEntry := fmt.Sprintf("[%s] %s", timestamp, msg)

	serverLogs = append(serverLogs, logEntry)
	if len(serverLogs) > maxLogs {
		serverLogs = serverLogs[1:]
	}

	// Imprimir no console também
	fmt.Println(logEntry)

	return len(p), nil
}

func main() {
	log.SetFlags(0)
	log.SetOutput(logWriter{})

	startTime = time.Now()
	log.Println("🚀 Iniciando Servidor PillNow...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Erro config: %v", err)
	}

	// Stores: Postgres em produção, memória quando DATABASE_URL não existe
	var (
		scheduleStore   store.ScheduleStore
		connectionStore store.ConnectionStore
		userStore       store.UserStore
	)

	if cfg.DatabaseURL != "" {
		db, err = database.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Erro DB: %v", err)
		}
		defer db.Close()

		if err := db.EnsureSchema(); err != nil {
			log.Fatalf("❌ Erro ao criar schema: %v", err)
		}

		scheduleStore = db
		connectionStore = db
		userStore = db
		log.Println("✅ PostgreSQL conectado")
	} else {
		mem := store.NewMemoryStore()
		scheduleStore = mem
		connectionStore = mem
		userStore = mem
		log.Println("⚠️ DATABASE_URL ausente: usando store em memória (dados voláteis)")
	}

	// Push é opcional: sem credenciais o sistema segue sem lembretes push
	var pusher notify.PushSender
	if cfg.EnablePushNotifications && cfg.FirebaseCredentialsPath != "" {
		pushService, err = push.NewFirebaseService(cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Printf("⚠️ Aviso: Falha ao carregar Firebase: %v", err)
		} else {
			pusher = pushService
		}
	}

	// Email fallback também é opcional
	var mailer *email.EmailService
	if cfg.EnableEmailFallback {
		mailer, err = email.NewEmailService(cfg)
		if err != nil {
			log.Printf("⚠️ Aviso: Email desabilitado: %v", err)
			mailer = nil
		} else {
			log.Println("✅ Serviço de email inicializado")
		}
	}
	var emailSender notify.EmailSender
	if mailer != nil {
		emailSender = mailer
	}

	bus = events.NewBus()
	defer bus.Close()

	engine := status.NewEngine(scheduleStore, bus, status.Options{
		GracePeriodMinutes:        cfg.GracePeriodMinutes,
		AdherenceToleranceMinutes: cfg.AdherenceToleranceMinutes,
		StrictStatusTransitions:   cfg.StrictStatusTransitions,
	})

	guard := access.NewGuard(connectionStore)
	dispatcher := notify.NewDispatcher(engine, userStore, connectionStore, pusher, emailSender, cfg.NotificationLeadMinutes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Gateway em tempo real: WebSocket (salas) + SSE
	hub = realtime.NewHub()
	go hub.Run(ctx, bus)
	go dispatcher.WatchTransitions(ctx, bus)

	// Workers: sweep de status, lembretes e relatório de adesão
	workerManager = workers.NewWorkerManager()
	workerManager.RegisterWorker(workers.NewSweepWorker(engine, cfg.SweepIntervalSeconds))
	workerManager.RegisterWorker(workers.NewNotifyWorker(dispatcher, cfg.NotificationIntervalMinutes))
	if mailer != nil {
		workerManager.RegisterWorker(workers.NewAdherenceWorker(scheduleStore, connectionStore, userStore, mailer, cfg.AdherenceReportIntervalHours))
	}
	workerManager.Start()
	defer workerManager.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/ws", hub.HandleWebSocket)

	// Rotas operacionais sem autenticação
	router.HandleFunc("/api/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/api/stats", statsHandler).Methods("GET")
	router.HandleFunc("/api/logs", logsHandler).Methods("GET")

	// Rotas de negócio atrás do JWT
	authMW := middleware.NewAuthMiddleware(cfg.JWTSecret)
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(authMW.Handler)

	handler := api.NewHandler(scheduleStore, connectionStore, engine, guard, cfg.NotificationLeadMinutes)
	handler.RegisterRoutes(protected)
	protected.Handle("/schedules/status/stream", realtime.NewSSEHandler(bus)).Methods("GET")

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.CORSMiddleware(router),
	}

	go func() {
		log.Printf("✅ Servidor pronto na porta %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Erro no servidor HTTP: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Shutdown forçado: %v", err)
	}
}

// --- API HANDLERS OPERACIONAIS ---

func statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	dbStatus := false
	if db != nil && db.GetConnection() != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.GetConnection().PingContext(ctx); err == nil {
			dbStatus = true
		}
	}

	response := map[string]interface{}{
		"ws_clients":  hub.ClientCount(),
		"subscribers": bus.SubscriberCount(),
		"workers":     workerManager.GetStats(),
		"uptime":      formatDuration(time.Since(startTime)),
		"db_status":   dbStatus,
		"firebase_ok": pushService != nil,
		"timestamp":   time.Now().Unix(),
	}

	json.NewEncoder(w).Encode(response)
}

func logsHandler(w http.ResponseWriter, r *http.Request) {
	logsMutex.RLock()
	defer logsMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]interface{}{
		"logs": serverLogs,
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "healthy"
	httpStatus := http.StatusOK

	if db != nil {
		if err := db.GetConnection().Ping(); err != nil {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
