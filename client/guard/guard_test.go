package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/upscpath/prep-platform/client/session"
)

func newStoreWithServer(t *testing.T, handler http.HandlerFunc) (*session.Store, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return session.NewStore(session.NewMemoryStorage(), srv.URL, srv.Client()), srv
}

func TestGuard_RedirectWithoutToken(t *testing.T) {
	store, _ := newStoreWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("guard пошёл на сервер без локального токена")
	})
	g := New(store)

	d := g.Check(context.Background(), "/dashboard")
	if d.State != StateRedirect {
		t.Fatalf("ожидался редирект, получено %d", d.State)
	}
	if d.RedirectTo != LoginPath {
		t.Fatalf("неожиданный путь редиректа: %s", d.RedirectTo)
	}
	if d.Intended != "/dashboard" {
		t.Fatalf("исходный маршрут потерян: %s", d.Intended)
	}
}

func TestGuard_AllowsValidToken(t *testing.T) {
	store, _ := newStoreWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"user": map[string]string{"id": "u-1", "email": "priya@example.com"},
		})
	})
	if err := store.SetAuth("token-1", &session.User{ID: "u-1", Email: "priya@example.com"}); err != nil {
		t.Fatalf("не удалось сохранить сессию: %v", err)
	}
	g := New(store)

	d := g.Check(context.Background(), "/tests")
	if d.State != StateAllowed {
		t.Fatalf("ожидался доступ, получено %d", d.State)
	}
}

func TestGuard_RevokedTokenClearsSession(t *testing.T) {
	store, _ := newStoreWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if err := store.SetAuth("stale", &session.User{ID: "u-1"}); err != nil {
		t.Fatalf("не удалось сохранить сессию: %v", err)
	}
	g := New(store)

	d := g.Check(context.Background(), "/dashboard")
	if d.State != StateRedirect {
		t.Fatalf("ожидался редирект для отозванного токена, получено %d", d.State)
	}
	if store.IsAuthenticated() {
		t.Fatal("локальная сессия не очищена после отказа сервера")
	}
}

func TestGuard_CheckLocal(t *testing.T) {
	store, _ := newStoreWithServer(t, func(w http.ResponseWriter, r *http.Request) {})
	g := New(store)

	if d := g.CheckLocal("/profile"); d.State != StateRedirect {
		t.Fatalf("ожидался редирект без токена, получено %d", d.State)
	}

	if err := store.SetAuth("token-1", &session.User{ID: "u-1"}); err != nil {
		t.Fatalf("не удалось сохранить сессию: %v", err)
	}
	if d := g.CheckLocal("/profile"); d.State != StatePending {
		t.Fatalf("ожидалось ожидание подтверждения, получено %d", d.State)
	}
}
