package workers

import (
	"context"
	"time"

	"pillnow/internal/status"
)

// SweepWorker envelhece doses Pending vencidas a cada ciclo.
// Toda a lógica vive na engine; aqui é só o agendamento.
type SweepWorker struct {
	engine   *status.Engine
	interval time.Duration
}

// NewSweepWorker cria o worker de varredura automática
func NewSweepWorker(engine *status.Engine, intervalSeconds int) *SweepWorker {
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	return &SweepWorker{
		engine:   engine,
		interval: time.Duration(intervalSeconds) * time.Second,
	}
}

func (sw *SweepWorker) Name() string {
	return "Status Sweep"
}

func (sw *SweepWorker) Interval() time.Duration {
	return sw.interval
}

func (sw *SweepWorker) Run(ctx context.Context) error {
	_, _, err := sw.engine.Sweep(ctx)
	return err
}
