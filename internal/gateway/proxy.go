package gateway

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

// forwardedHeaders are copied from the client request. Identity headers are
// never copied; they are set from the verified token only.
var forwardedHeaders = []string{"Content-Type", "Accept", "Idempotency-Key"}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// ForwardRequest replays r against the upstream at path. A nil user sends the
// request anonymously.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string, user *domain.User) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, h := range forwardedHeaders {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	if user != nil {
		identity.SetHeaders(req.Header, *user)
	}

	return p.client.Do(req)
}
