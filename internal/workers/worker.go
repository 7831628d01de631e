package workers

import (
	"context"
	"log"
	"sync"
	"time"
)

// Worker interface que todos os workers devem implementar
type Worker interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// WorkerManager gerencia os loops periódicos do sistema (sweep,
// notificações, relatórios). Cada worker roda na própria goroutine
// com ticker independente; não há coordenação entre eles.
type WorkerManager struct {
	workers  []Worker
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewWorkerManager cria um novo gerenciador de workers
func NewWorkerManager() *WorkerManager {
	return &WorkerManager{
		workers:  []Worker{},
		stopChan: make(chan struct{}),
	}
}

// RegisterWorker registra um novo worker
func (wm *WorkerManager) RegisterWorker(w Worker) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wm.workers = append(wm.workers, w)
	log.Printf("✅ Worker '%s' registrado (intervalo: %v)", w.Name(), w.Interval())
}

// Start inicia todos os workers registrados
func (wm *WorkerManager) Start() {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	log.Printf("🚀 Iniciando %d worker(s)...", len(wm.workers))

	for _, worker := range wm.workers {
		wm.wg.Add(1)
		go wm.runWorker(worker)
	}

	log.Println("✅ Todos os workers iniciados")
}

// runWorker executa um worker específico
func (wm *WorkerManager) runWorker(w Worker) {
	defer wm.wg.Done()

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	log.Printf("🤖 Worker '%s' iniciado (intervalo: %v)", w.Name(), w.Interval())

	// Executar imediatamente na primeira vez
	wm.executeWorker(w)

	for {
		select {
		case <-ticker.C:
			wm.executeWorker(w)

		case <-wm.stopChan:
			log.Printf("🛑 Worker '%s' parado", w.Name())
			return
		}
	}
}

// executeWorker executa um worker com timeout e tratamento de erros
func (wm *WorkerManager) executeWorker(w Worker) {
	// Timeout de 5 minutos por execução
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	startTime := time.Now()

	if err := w.Run(ctx); err != nil {
		log.Printf("❌ Erro no worker '%s': %v", w.Name(), err)
	} else {
		duration := time.Since(startTime)
		if duration > time.Second {
			log.Printf("✅ Worker '%s' executado com sucesso (duração: %v)", w.Name(), duration)
		}
	}
}

// Stop para todos os workers
func (wm *WorkerManager) Stop() {
	log.Println("🛑 Parando todos os workers...")

	close(wm.stopChan)
	wm.wg.Wait()

	log.Println("✅ Todos os workers parados")
}

// WorkerStats retorna estatísticas dos workers
type WorkerStats struct {
	TotalWorkers int      `json:"totalWorkers"`
	WorkerNames  []string `json:"workerNames"`
}

// GetStats retorna estatísticas dos workers
func (wm *WorkerManager) GetStats() WorkerStats {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	names := make([]string, len(wm.workers))
	for i, w := range wm.workers {
		names[i] = w.Name()
	}

	return WorkerStats{
		TotalWorkers: len(wm.workers),
		WorkerNames:  names,
	}
}
