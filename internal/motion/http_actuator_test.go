package motion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// motionServer fakes the controller bridge protocol.
type motionServer struct {
	mu         sync.Mutex
	position   float64
	movingFor  int // state polls that still report moving
	lastTarget float64
	moveCalls  int
}

func (m *motionServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /axes/focus/target", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Position float64 `json:"position"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Bad move body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.lastTarget = body.Position
		m.moveCalls++
		m.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /axes/focus", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		moving := m.movingFor > 0
		if moving {
			m.movingFor--
		} else {
			m.position = m.lastTarget
		}
		state := axisState{Position: m.position, Moving: moving}
		m.mu.Unlock()
		json.NewEncoder(w).Encode(state)
	})
	return mux
}

func TestHTTPActuatorMoveAndSettle(t *testing.T) {
	srv := &motionServer{movingFor: 2}
	server := httptest.NewServer(srv.handler(t))
	defer server.Close()

	axis, err := NewHTTPActuator(HTTPActuatorConfig{
		Name:         "focus",
		BaseURL:      server.URL,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := axis.MoveTo(ctx, 12.5); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := axis.WaitSettled(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if srv.lastTarget != 12.5 {
		t.Errorf("Expected controller to receive target 12.5, got %g", srv.lastTarget)
	}
	if srv.moveCalls != 1 {
		t.Errorf("Expected exactly one move request, got %d", srv.moveCalls)
	}

	pos, err := axis.Position()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pos != 12.5 {
		t.Errorf("Expected position 12.5, got %g", pos)
	}
}

func TestHTTPActuatorMoveRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	axis, err := NewHTTPActuator(HTTPActuatorConfig{Name: "focus", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err = axis.MoveTo(context.Background(), 1)
	if !apperrors.IsKind(err, apperrors.KindMotion) {
		t.Errorf("Expected motion kind, got %v", err)
	}
}

func TestHTTPActuatorSettleTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(axisState{Position: 0, Moving: true})
	}))
	defer server.Close()

	axis, err := NewHTTPActuator(HTTPActuatorConfig{
		Name:          "focus",
		BaseURL:       server.URL,
		PollInterval:  time.Millisecond,
		SettleTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err = axis.WaitSettled(context.Background())
	if !apperrors.IsKind(err, apperrors.KindMotionTimeout) {
		t.Errorf("Expected motion timeout kind, got %v", err)
	}
}

func TestHTTPActuatorUnreachableController(t *testing.T) {
	axis, err := NewHTTPActuator(HTTPActuatorConfig{
		Name:           "focus",
		BaseURL:        "http://127.0.0.1:1",
		RequestTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := axis.MoveTo(context.Background(), 1); !apperrors.IsKind(err, apperrors.KindMotion) {
		t.Errorf("Expected motion kind, got %v", err)
	}
	if _, err := axis.Position(); !apperrors.IsKind(err, apperrors.KindMotion) {
		t.Errorf("Expected motion kind, got %v", err)
	}
}

func TestNewHTTPActuatorValidation(t *testing.T) {
	if _, err := NewHTTPActuator(HTTPActuatorConfig{BaseURL: "http://x"}); !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("Expected invalid config for missing name, got %v", err)
	}
	if _, err := NewHTTPActuator(HTTPActuatorConfig{Name: "focus"}); !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("Expected invalid config for missing base url, got %v", err)
	}
}
