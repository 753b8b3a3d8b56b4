package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		// Always allowed
		{"empty origin", "", false, true},
		{"own host", "http://kiosk.local:8080", false, true},

		// Rejected in production
		{"different host", "http://evil.example", false, false},
		{"different port", "http://kiosk.local:9090", false, false},
		{"unparsable", "://", false, false},

		// Localhost: allowed in dev, rejected in prod
		{"localhost dev", "http://localhost:3000", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:5173", true, true},
		{"localhost prod rejected", "http://localhost:3000", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://kiosk.local:8080/ws/view", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}
