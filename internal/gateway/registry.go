package gateway

import (
	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/shared/config"
)

// Registry guarda um Client por appid, montado na inicialização a partir da
// configuração e passado por referência aos serviços e workers.
type Registry struct {
	clients map[string]*Client
}

func NewRegistry(apps []config.GatewayApp) *Registry {
	r := &Registry{clients: make(map[string]*Client, len(apps))}
	for _, app := range apps {
		r.clients[app.AppID] = NewClient(app)
	}
	return r
}

// Get resolve o cliente de um appid; appid desconhecido é erro de negócio.
func (r *Registry) Get(appid string) (*Client, error) {
	c, ok := r.clients[appid]
	if !ok {
		return nil, apperr.ErrInvalidAppID
	}
	return c, nil
}

// Caller é Get com o tipo de retorno que os serviços consomem.
func (r *Registry) Caller(appid string) (Caller, error) {
	return r.Get(appid)
}
