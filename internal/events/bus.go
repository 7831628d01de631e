package events

import (
	"log"
	"sync"

	"pillnow/pkg/models"
)

// tamanho do buffer por assinante; cheio = evento descartado para aquele
// assinante (entrega é fire-and-forget, sem replay)
const subscriberBuffer = 32

// Subscriber recebe eventos de transição pelo canal C.
// O assinante filtra por userId/containerId/scheduleId conforme precisar.
type Subscriber struct {
	C  chan models.StatusUpdateEvent
	id int64
}

// Bus é o canal publish/subscribe em processo para o tópico statusUpdate.
// Passado por referência a quem publica ou assina; nada de estado global.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int64]*Subscriber
	nextID      int64
	closed      bool
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[int64]*Subscriber),
	}
}

// Subscribe registra um novo assinante
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{
		C:  make(chan models.StatusUpdateEvent, subscriberBuffer),
		id: b.nextID,
	}

	if b.closed {
		close(sub.C)
		return sub
	}

	b.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe remove o assinante e fecha seu canal
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub.id]; !ok {
		return
	}
	delete(b.subscribers, sub.id)
	close(sub.C)
}

// Publish entrega o evento a todos os assinantes sem bloquear.
// Assinante lento perde o evento; publicação nunca espera.
func (b *Bus) Publish(event models.StatusUpdateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		select {
		case sub.C <- event:
		default:
			log.Printf("⚠️ Bus: assinante %d com buffer cheio, evento descartado (schedule %d)", sub.id, event.ScheduleID)
		}
	}
}

// Close encerra o bus e fecha todos os canais de assinantes
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subscribers {
		close(sub.C)
		delete(b.subscribers, id)
	}
}

// SubscriberCount retorna o número de assinantes ativos
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
