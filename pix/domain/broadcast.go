package domain

import "context"

const (
	// DashboardTopic é o tópico lógico único do dashboard.
	DashboardTopic = "pix-dashboard"
	// DashboardEvent é o nome fixo do evento entregue aos assinantes.
	DashboardEvent = "pix.updated"
)

// Snapshot é a contagem por estado num instante.
//
// As três contagens são consultas independentes: sob escrita concorrente o
// snapshot pode ficar momentaneamente inconsistente (o dashboard é consultivo).
type Snapshot struct {
	Generated int64 `json:"generated"`
	Paid      int64 `json:"paid"`
	Expired   int64 `json:"expired"`
}

func (s Snapshot) Total() int64 { return s.Generated + s.Paid + s.Expired }

// Event é o envelope publicado no tópico do dashboard.
type Event struct {
	Name  string   `json:"event"`
	Stats Snapshot `json:"data"`
}

func NewEvent(s Snapshot) Event {
	return Event{Name: DashboardEvent, Stats: s}
}

// Broadcaster publica um snapshot para todos os assinantes atuais.
//
// Fire-and-forget: quem estiver offline não recebe nada depois (sem replay).
// Entrega "pelo menos uma vez" é aceitável.
type Broadcaster interface {
	Publish(ctx context.Context, s Snapshot) error
}

// Subscriber entrega os eventos publicados a partir do momento da assinatura.
// O canal é fechado quando ctx termina ou quando cancel é chamado.
type Subscriber interface {
	Subscribe(ctx context.Context) (events <-chan Event, cancel func(), err error)
}
