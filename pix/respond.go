package pix

import (
	"encoding/json"
	"net/http"
	"time"

	"pix-lifecycle/pix/domain"
)

const (
	msgCreated = "PIX gerado com sucesso"
	msgPaid    = "Pagamento confirmado com sucesso"
	msgExpired = "PIX expirado"
)

func statusMessage(s domain.Status) string {
	switch s {
	case domain.StatusPaid:
		return msgPaid
	case domain.StatusExpired:
		return msgExpired
	}
	return "PIX aguardando pagamento"
}

type errorBody struct {
	Message string `json:"message"`
}

type createdBody struct {
	Message string      `json:"message"`
	Data    createdData `json:"data"`
}

type createdData struct {
	Token     string    `json:"token"`
	Amount    string    `json:"amount"`
	ExpiresAt time.Time `json:"expires_at"`
	QRCodeURL string    `json:"qr_code_url"`
}

type resolvedBody struct {
	Message string        `json:"message"`
	Status  domain.Status `json:"status"`
}

type pixBody struct {
	ID        int64         `json:"id"`
	Token     string        `json:"token"`
	Amount    string        `json:"amount"`
	Status    domain.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	PaidAt    *time.Time    `json:"paid_at"`
}

type pageBody struct {
	Data        []pixBody `json:"data"`
	CurrentPage int       `json:"current_page"`
	PerPage     int       `json:"per_page"`
	Total       int64     `json:"total"`
	LastPage    int       `json:"last_page"`
}

func toPixBody(p domain.Pix) pixBody {
	return pixBody{
		ID:        p.ID,
		Token:     p.Token,
		Amount:    p.Amount.StringFixed(2),
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
		PaidAt:    p.PaidAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}
