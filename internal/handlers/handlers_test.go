package handlers_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"chatsino/internal/games/roulette"
	"chatsino/internal/handlers"
	"chatsino/internal/middleware"
	"chatsino/internal/models"
	"chatsino/internal/services"
	"chatsino/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// inOrder leaves every shuffled shoe in deck order, so a new hand is 2C 2H
// against 2D and still in play.
type inOrder struct{}

func (inOrder) Uint64() uint64 { return math.MaxUint64 }

type env struct {
	engine    *gin.Engine
	store     *store.Store
	jwt       *services.JWTService
	tickets   *services.TicketService
	blackjack *services.BlackjackService
	roulette  *services.RouletteService
}

func setup(t *testing.T) *env {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	entry := log.NewEntry(logger)

	s, err := store.Open(filepath.Join(t.TempDir(), "chatsino.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	redisService := services.NewRedisServiceWithClient(client)

	tickets, err := services.NewTicketService(redisService, s, "0123456789abcdef0123456789abcdef", time.Minute, entry)
	if err != nil {
		t.Fatalf("Failed to create ticket service: %v", err)
	}

	e := &env{
		store:     s,
		jwt:       services.NewJWTService("test-secret"),
		tickets:   tickets,
		blackjack: services.NewBlackjackService(s, s, 6, entry),
		roulette:  services.NewRouletteService(s, s, roulette.DefaultDurations, entry),
	}

	e.blackjack.SetRandSource(func() *rand.Rand { return rand.New(inOrder{}) })

	userHandler := handlers.NewUserHandler(s, tickets, entry)
	gameHandler := handlers.NewGameHandler(e.blackjack, e.roulette, entry)

	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(e.jwt))
	api.GET("/me", userHandler.GetCurrentUser)
	api.GET("/me/balance", userHandler.GetBalance)
	api.GET("/me/transactions", userHandler.GetTransactions)
	api.POST("/ticket", userHandler.GrantTicket)
	api.GET("/games/blackjack", gameHandler.GetBlackjack)
	api.GET("/games/roulette", gameHandler.GetRoulette)
	e.engine = r
	return e
}

func (e *env) client(t *testing.T, username string, chips int64) (models.ClientIdentity, string) {
	t.Helper()
	c, err := e.store.CreateClient(context.Background(), username, models.PermissionUser, chips)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	token, err := e.jwt.GenerateToken(c)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return c, token
}

func (e *env) do(t *testing.T, method, target, token string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("Failed to decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestGetCurrentUser(t *testing.T) {
	e := setup(t)
	alice, token := e.client(t, "alice", 1000)

	var body struct {
		Client models.ClientIdentity `json:"client"`
	}
	if code := e.do(t, http.MethodGet, "/api/me", token, &body); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if body.Client.ID != alice.ID || body.Client.Chips != 1000 || body.Client.Username != "alice" {
		t.Errorf("Unexpected client %+v", body.Client)
	}

	ghost, _ := e.jwt.GenerateToken(models.ClientIdentity{ID: 9999, Username: "ghost", PermissionLevel: models.PermissionUser})
	if code := e.do(t, http.MethodGet, "/api/me", ghost, nil); code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown client, got %d", code)
	}
}

func TestGrantTicket(t *testing.T) {
	e := setup(t)
	alice, token := e.client(t, "alice", 1000)

	var body struct {
		Ticket string `json:"ticket"`
	}
	if code := e.do(t, http.MethodPost, "/api/ticket", token, &body); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if body.Ticket == "" {
		t.Fatal("Expected a ticket")
	}

	// httptest requests come from 192.0.2.1.
	got, err := e.tickets.ValidateTicket(context.Background(), body.Ticket, "192.0.2.1:5555")
	if err != nil {
		t.Fatalf("Expected ticket to validate: %v", err)
	}
	if got.ID != alice.ID {
		t.Errorf("Expected ticket for %d, got %d", alice.ID, got.ID)
	}
	if _, err := e.tickets.ValidateTicket(context.Background(), body.Ticket, "192.0.2.1:5555"); !errors.Is(err, models.ErrTicketNotFound) {
		t.Errorf("Expected ticket to be single use, got %v", err)
	}
}

func TestGetGames(t *testing.T) {
	e := setup(t)
	alice, token := e.client(t, "alice", 1000)

	var body struct {
		Game *struct {
			ID     int64 `json:"id"`
			Active bool  `json:"active"`
		} `json:"game"`
	}
	if code := e.do(t, http.MethodGet, "/api/games/blackjack", token, &body); code != http.StatusOK || body.Game != nil {
		t.Fatalf("Expected no blackjack game, got %d %+v", code, body.Game)
	}

	started, err := e.blackjack.Start(context.Background(), alice.ID, 10)
	if err != nil {
		t.Fatalf("Failed to start blackjack: %v", err)
	}
	body.Game = nil
	e.do(t, http.MethodGet, "/api/games/blackjack", token, &body)
	if !started.Active || body.Game == nil || body.Game.ID != started.ID {
		t.Errorf("Expected active game %d, got %+v", started.ID, body.Game)
	}

	body.Game = nil
	if code := e.do(t, http.MethodGet, "/api/games/roulette", token, &body); code != http.StatusOK || body.Game != nil {
		t.Fatalf("Expected no roulette round, got %d %+v", code, body.Game)
	}
	round, err := e.roulette.Start(context.Background())
	if err != nil {
		t.Fatalf("Failed to start roulette: %v", err)
	}
	e.do(t, http.MethodGet, "/api/games/roulette", token, &body)
	if body.Game == nil || body.Game.ID != round.ID || !body.Game.Active {
		t.Errorf("Expected round %d, got %+v", round.ID, body.Game)
	}
}

func TestGetTransactions(t *testing.T) {
	e := setup(t)
	alice, token := e.client(t, "alice", 100)
	if _, err := e.store.Charge(context.Background(), alice.ID, 30, "test wager"); err != nil {
		t.Fatalf("Failed to charge: %v", err)
	}

	var body struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	if code := e.do(t, http.MethodGet, "/api/me/transactions", token, &body); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if len(body.Transactions) != 1 || body.Transactions[0].Amount != 30 || body.Transactions[0].BalanceAfter != 70 {
		t.Errorf("Unexpected transactions %+v", body.Transactions)
	}

	if code := e.do(t, http.MethodGet, "/api/me/transactions?limit=zero", token, nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", code)
	}
}

func TestGetBalance(t *testing.T) {
	e := setup(t)
	alice, token := e.client(t, "alice", 100)
	if _, err := e.store.Charge(context.Background(), alice.ID, 40, "test wager"); err != nil {
		t.Fatalf("Failed to charge: %v", err)
	}

	var body models.BalanceResponse
	if code := e.do(t, http.MethodGet, "/api/me/balance", token, &body); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if body.ClientID != alice.ID || body.Chips != 60 {
		t.Errorf("Unexpected balance %+v", body)
	}

	ghost, _ := e.jwt.GenerateToken(models.ClientIdentity{ID: 9999, Username: "ghost", PermissionLevel: models.PermissionUser})
	if code := e.do(t, http.MethodGet, "/api/me/balance", ghost, nil); code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown client, got %d", code)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/healthz", handlers.NewHealthHandler(map[string]handlers.Pinger{"store": fakePinger{}}).Health)
	r.GET("/sick", handlers.NewHealthHandler(map[string]handlers.Pinger{
		"store": fakePinger{},
		"redis": fakePinger{err: errors.New("connection refused")},
	}).Health)

	for target, want := range map[string]int{"/healthz": http.StatusOK, "/sick": http.StatusServiceUnavailable} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != want {
			t.Errorf("%s: expected %d, got %d", target, want, rec.Code)
		}
	}
}
