// Package router mounts the REST API, the WebSocket endpoint and the
// operational endpoints on one mux.
package router

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/service"
	"github.com/vedran77/tandem/internal/transport/http/handlers"
	"github.com/vedran77/tandem/internal/transport/http/middleware"
	"github.com/vedran77/tandem/internal/transport/ws"
)

type Deps struct {
	Auth          *service.AuthService
	Pairing       *service.PairingService
	Profiles      *service.ProfileService
	Notifications *service.NotificationService
	Dashboard     *service.DashboardService
	Chat          *service.ChatService
	Typing        *service.TypingService
	Goals         *service.GoalService
	Events        *service.EventService
	Memories      *service.MemoryService
	Notes         *service.NoteService

	Hub         *ws.Hub
	AuthLimiter *middleware.LimiterStore
	Logger      logging.Logger

	// Base outlives individual requests; WebSocket connections hang off it.
	Base context.Context
}

func New(d Deps) http.Handler {
	authHandler := handlers.NewAuthHandler(d.Auth, d.Logger)
	pairingHandler := handlers.NewPairingHandler(d.Pairing, d.Logger)
	profileHandler := handlers.NewProfileHandler(d.Profiles, d.Notifications, d.Dashboard, d.Logger)
	chatHandler := handlers.NewChatHandler(d.Chat, d.Typing, d.Logger)
	collections := handlers.NewCollectionsHandler(d.Goals, d.Events, d.Memories, d.Notes, d.Logger)

	auth := middleware.Auth(d.Auth)
	limit := middleware.RateLimit(d.AuthLimiter)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /ws", ws.ServeWS(d.Base, d.Hub, d.Auth, d.Logger))

	mux.Handle("POST /api/v1/auth/signup", limit(http.HandlerFunc(authHandler.SignUp)))
	mux.Handle("POST /api/v1/auth/signin", limit(http.HandlerFunc(authHandler.SignIn)))
	mux.Handle("POST /api/v1/auth/provider/{provider}", limit(http.HandlerFunc(authHandler.SignInWithProvider)))
	mux.Handle("POST /api/v1/auth/signout", protected(authHandler.SignOut))

	// Protected - Profile
	mux.Handle("GET /api/v1/me", protected(profileHandler.Me))
	mux.Handle("PATCH /api/v1/me", protected(profileHandler.UpdateMe))
	mux.Handle("GET /api/v1/partner", protected(profileHandler.Partner))
	mux.Handle("DELETE /api/v1/partner", protected(pairingHandler.RemovePartner))
	mux.Handle("GET /api/v1/notifications", protected(profileHandler.Mailbox))
	mux.Handle("POST /api/v1/notifications/read", protected(profileHandler.MarkRead))
	mux.Handle("GET /api/v1/dashboard", protected(profileHandler.Dashboard))

	// Protected - Pairing
	mux.Handle("POST /api/v1/invites", protected(pairingHandler.CreateInvite))
	mux.Handle("POST /api/v1/invites/{code}/redeem", protected(pairingHandler.RedeemInvite))
	mux.Handle("GET /api/v1/accounts/search", protected(pairingHandler.Search))
	mux.Handle("GET /api/v1/accounts/lookup", protected(pairingHandler.FindByEmail))
	mux.Handle("POST /api/v1/requests", protected(pairingHandler.SendRequest))
	mux.Handle("GET /api/v1/requests/incoming", protected(pairingHandler.ListIncoming))
	mux.Handle("GET /api/v1/requests/outgoing", protected(pairingHandler.ListOutgoing))
	mux.Handle("POST /api/v1/requests/{id}/accept", protected(pairingHandler.Accept))
	mux.Handle("POST /api/v1/requests/{id}/decline", protected(pairingHandler.Decline))
	mux.Handle("DELETE /api/v1/requests/{id}", protected(pairingHandler.Cancel))

	// Protected - Chat
	mux.Handle("GET /api/v1/chat/messages", protected(chatHandler.History))
	mux.Handle("POST /api/v1/chat/messages", protected(chatHandler.SendText))
	mux.Handle("POST /api/v1/chat/audio", protected(chatHandler.SendAudio))
	mux.Handle("DELETE /api/v1/chat/messages/{id}", protected(chatHandler.DeleteMessage))
	mux.Handle("POST /api/v1/chat/typing", protected(chatHandler.Typing))

	// Protected - Shared collections
	mux.Handle("GET /api/v1/goals", protected(collections.ListGoals))
	mux.Handle("POST /api/v1/goals", protected(collections.AddGoal))
	mux.Handle("PATCH /api/v1/goals/{id}", protected(collections.SetGoalCompleted))
	mux.Handle("DELETE /api/v1/goals/{id}", protected(collections.DeleteGoal))

	mux.Handle("GET /api/v1/events", protected(collections.ListEvents))
	mux.Handle("GET /api/v1/events/upcoming", protected(collections.UpcomingEvents))
	mux.Handle("POST /api/v1/events", protected(collections.CreateEvent))
	mux.Handle("PUT /api/v1/events/{id}", protected(collections.UpdateEvent))
	mux.Handle("DELETE /api/v1/events/{id}", protected(collections.DeleteEvent))

	mux.Handle("GET /api/v1/memories", protected(collections.ListMemories))
	mux.Handle("POST /api/v1/memories", protected(collections.AddMemory))
	mux.Handle("POST /api/v1/memories/{id}/favorite", protected(collections.ToggleFavorite))
	mux.Handle("DELETE /api/v1/memories/{id}", protected(collections.DeleteMemory))

	mux.Handle("GET /api/v1/notes", protected(collections.ListNotes))
	mux.Handle("POST /api/v1/notes", protected(collections.AddNote))
	mux.Handle("DELETE /api/v1/notes/{id}", protected(collections.DeleteNote))

	return middleware.RequestLogger(d.Logger)(middleware.CORS(mux))
}
