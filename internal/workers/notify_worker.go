package workers

import (
	"context"
	"time"

	"pillnow/internal/notify"
)

// NotifyWorker dispara o dispatcher de lembretes a cada ciclo
type NotifyWorker struct {
	dispatcher *notify.Dispatcher
	interval   time.Duration
}

// NewNotifyWorker cria o worker de notificações
func NewNotifyWorker(dispatcher *notify.Dispatcher, intervalMinutes int) *NotifyWorker {
	if intervalMinutes <= 0 {
		intervalMinutes = 5
	}
	return &NotifyWorker{
		dispatcher: dispatcher,
		interval:   time.Duration(intervalMinutes) * time.Minute,
	}
}

func (nw *NotifyWorker) Name() string {
	return "Dose Notifier"
}

func (nw *NotifyWorker) Interval() time.Duration {
	return nw.interval
}

func (nw *NotifyWorker) Run(ctx context.Context) error {
	return nw.dispatcher.Run(ctx)
}
