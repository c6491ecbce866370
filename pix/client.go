package pix

import (
	"net"
	"net/http"
	"strings"

	"pix-lifecycle/pix/domain"
)

// ClientKeyFunc decide de quem é uma consulta pública.
type ClientKeyFunc func(*http.Request) domain.ClientKey

// ClientKeyFrom identifica o cliente pelo header configurado, depois pelo
// primeiro endereço do X-Forwarded-For (só atrás de proxy confiável) e por
// fim pelo IP da conexão.
func ClientKeyFrom(header string, trustXFF bool) ClientKeyFunc {
	return func(r *http.Request) domain.ClientKey {
		if header != "" {
			if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
				return domain.ClientKey(v)
			}
		}
		if trustXFF {
			first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return domain.ClientKey(ip)
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return domain.ClientKey(r.RemoteAddr)
		}
		return domain.ClientKey(host)
	}
}
