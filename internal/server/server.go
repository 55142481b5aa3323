package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/hearth/internal/authz"
	"github.com/dukerupert/hearth/internal/backup"
	"github.com/dukerupert/hearth/internal/email"
	"github.com/dukerupert/hearth/internal/handler"
	"github.com/dukerupert/hearth/internal/invite"
	"github.com/dukerupert/hearth/internal/middleware"
	"github.com/dukerupert/hearth/internal/report"
	"github.com/dukerupert/hearth/internal/store"
	ws "github.com/dukerupert/hearth/internal/websocket"
)

const inviteTTL = 7 * 24 * time.Hour

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	authH          *handler.AuthHandler
	householdH     *handler.HouseholdHandler
	profileH       *handler.ProfileHandler
	inviteH        *handler.InviteHandler
	stockH         *handler.StockAccountHandler
	pensionH       *handler.PensionAccountHandler
	miscAssetH     *handler.MiscAssetHandler
	budgetH        *handler.BudgetHandler
	netWorthH      *handler.NetWorthHandler
	backupH        *handler.BackupHandler
	sessionStore   *store.SessionStore
	profileStore   *store.ProfileStore
	householdStore *store.HouseholdStore
	rateLimiter    *middleware.RateLimiter
	backupManager  *backup.Manager
	logger         *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, inviteSecret []byte, s3cfg backup.S3Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	profileStore := store.NewProfileStore(db)
	householdStore := store.NewHouseholdStore(db)
	sessionStore := store.NewSessionStore(db)
	stockStore := store.NewStockAccountStore(db)
	pensionStore := store.NewPensionAccountStore(db)
	miscAssetStore := store.NewMiscAssetStore(db)
	budgetStore := store.NewBudgetStore(db)
	netWorthStore := store.NewNetWorthStore(db)
	settingsStore := store.NewSettingsStore(db)
	backupStore := store.NewBackupStore(db)

	resolver := authz.NewResolver(profileStore, householdStore)
	reportSvc := report.NewService(stockStore, pensionStore, miscAssetStore, budgetStore, netWorthStore)
	issuer := invite.NewIssuer(inviteSecret, inviteTTL)

	backupLogger := logger.With("component", "backup")
	exporter := backup.NewExporter(db, backupLogger)
	restorer := backup.NewRestorer(db, backupLogger)
	backupMgr := backup.NewManager(s3cfg, exporter, restorer, backupStore, settingsStore, backupLogger, func(s backup.Status) {
		hub.Broadcast(0, ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	})

	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, profileStore, householdStore, sessionStore, logger.With("component", "auth")),
		householdH:     handler.NewHouseholdHandler(householdStore, profileStore, hub, logger.With("component", "household")),
		profileH:       handler.NewProfileHandler(profileStore, householdStore),
		inviteH:        handler.NewInviteHandler(issuer, emailClient, userStore, profileStore, householdStore, logger.With("component", "invite")),
		stockH:         handler.NewStockAccountHandler(stockStore, resolver, hub, logger.With("component", "stock")),
		pensionH:       handler.NewPensionAccountHandler(pensionStore, resolver, hub, logger.With("component", "pension")),
		miscAssetH:     handler.NewMiscAssetHandler(miscAssetStore, resolver, hub, logger.With("component", "misc_asset")),
		budgetH:        handler.NewBudgetHandler(budgetStore, reportSvc, hub),
		netWorthH:      handler.NewNetWorthHandler(reportSvc, netWorthStore, resolver),
		backupH:        handler.NewBackupHandler(exporter, restorer, backupMgr, backupStore, settingsStore, userStore, backupLogger),
		sessionStore:   sessionStore,
		profileStore:   profileStore,
		householdStore: householdStore,
		rateLimiter:    middleware.NewRateLimiter(),
		backupManager:  backupMgr,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the offsite backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /api/invites/info", s.inviteH.Info)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.profileStore, s.householdStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session routes
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("POST /api/auth/switch-household", s.authH.SwitchHousehold)

	// Household routes
	mux.HandleFunc("GET /api/households", s.householdH.List)
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("GET /api/households/{id}", s.householdH.Get)
	mux.HandleFunc("PUT /api/households/{id}", s.householdH.Update)
	mux.HandleFunc("DELETE /api/households/{id}", s.householdH.Delete)
	mux.HandleFunc("GET /api/households/{id}/members", s.householdH.ListMembers)
	mux.HandleFunc("POST /api/households/{id}/members", s.householdH.AddMember)
	mux.HandleFunc("PUT /api/households/{id}/members/{profileID}", s.householdH.UpdateMemberRole)
	mux.HandleFunc("DELETE /api/households/{id}/members/{profileID}", s.householdH.RemoveMember)

	// Profile routes
	mux.HandleFunc("GET /api/profiles", s.profileH.List)
	mux.HandleFunc("POST /api/profiles", s.profileH.Create)
	mux.HandleFunc("PUT /api/profiles/{id}", s.profileH.Update)
	mux.HandleFunc("DELETE /api/profiles/{id}", s.profileH.Delete)

	// Invite routes
	mux.HandleFunc("POST /api/invites", s.inviteH.Send)
	mux.HandleFunc("POST /api/invites/accept", s.inviteH.Accept)

	// Stock account routes
	mux.HandleFunc("GET /api/stock-accounts", s.stockH.List)
	mux.HandleFunc("POST /api/stock-accounts", s.stockH.Create)
	mux.HandleFunc("GET /api/stock-accounts/{id}", s.stockH.Get)
	mux.HandleFunc("PUT /api/stock-accounts/{id}", s.stockH.Update)
	mux.HandleFunc("DELETE /api/stock-accounts/{id}", s.stockH.Delete)
	mux.HandleFunc("GET /api/stock-accounts/{id}/owners", s.stockH.GetOwners)
	mux.HandleFunc("PUT /api/stock-accounts/{id}/owners", s.stockH.PutOwners)
	mux.HandleFunc("GET /api/stock-accounts/{id}/holdings", s.stockH.ListHoldings)
	mux.HandleFunc("POST /api/stock-accounts/{id}/holdings", s.stockH.CreateHolding)
	mux.HandleFunc("PUT /api/stock-accounts/{id}/holdings/{holdingID}", s.stockH.UpdateHolding)
	mux.HandleFunc("DELETE /api/stock-accounts/{id}/holdings/{holdingID}", s.stockH.DeleteHolding)
	mux.HandleFunc("GET /api/stock-accounts/{id}/prices", s.stockH.ListPrices)
	mux.HandleFunc("POST /api/stock-accounts/{id}/prices", s.stockH.RecordPrice)

	// Pension account routes
	mux.HandleFunc("GET /api/pension-accounts", s.pensionH.List)
	mux.HandleFunc("POST /api/pension-accounts", s.pensionH.Create)
	mux.HandleFunc("GET /api/pension-accounts/{id}", s.pensionH.Get)
	mux.HandleFunc("PUT /api/pension-accounts/{id}", s.pensionH.Update)
	mux.HandleFunc("DELETE /api/pension-accounts/{id}", s.pensionH.Delete)
	mux.HandleFunc("GET /api/pension-accounts/{id}/owners", s.pensionH.GetOwners)
	mux.HandleFunc("PUT /api/pension-accounts/{id}/owners", s.pensionH.PutOwners)
	mux.HandleFunc("GET /api/pension-accounts/{id}/deposits", s.pensionH.ListDeposits)
	mux.HandleFunc("POST /api/pension-accounts/{id}/deposits", s.pensionH.AddDeposit)

	// Misc asset routes
	mux.HandleFunc("GET /api/misc-assets", s.miscAssetH.List)
	mux.HandleFunc("POST /api/misc-assets", s.miscAssetH.Create)
	mux.HandleFunc("GET /api/misc-assets/{id}", s.miscAssetH.Get)
	mux.HandleFunc("PUT /api/misc-assets/{id}", s.miscAssetH.Update)
	mux.HandleFunc("DELETE /api/misc-assets/{id}", s.miscAssetH.Delete)
	mux.HandleFunc("GET /api/misc-assets/{id}/owners", s.miscAssetH.GetOwners)
	mux.HandleFunc("PUT /api/misc-assets/{id}/owners", s.miscAssetH.PutOwners)

	// Budget routes
	mux.HandleFunc("GET /api/budget/groups", s.budgetH.ListGroups)
	mux.HandleFunc("POST /api/budget/groups", s.budgetH.CreateGroup)
	mux.HandleFunc("PUT /api/budget/groups/{id}", s.budgetH.UpdateGroup)
	mux.HandleFunc("DELETE /api/budget/groups/{id}", s.budgetH.DeleteGroup)
	mux.HandleFunc("GET /api/budget/categories", s.budgetH.ListCategories)
	mux.HandleFunc("POST /api/budget/categories", s.budgetH.CreateCategory)
	mux.HandleFunc("PUT /api/budget/categories/{id}", s.budgetH.UpdateCategory)
	mux.HandleFunc("DELETE /api/budget/categories/{id}", s.budgetH.DeleteCategory)
	mux.HandleFunc("GET /api/budget/transactions", s.budgetH.ListTransactions)
	mux.HandleFunc("POST /api/budget/transactions", s.budgetH.CreateTransaction)
	mux.HandleFunc("DELETE /api/budget/transactions/{id}", s.budgetH.DeleteTransaction)
	mux.HandleFunc("GET /api/budget/summary", s.budgetH.Summary)

	// Net worth routes
	mux.HandleFunc("GET /api/net-worth", s.netWorthH.Summary)
	mux.HandleFunc("POST /api/net-worth/snapshots", s.netWorthH.Snapshot)
	mux.HandleFunc("GET /api/net-worth/snapshots", s.netWorthH.History)

	// Backup routes
	mux.HandleFunc("GET /api/backup/export", s.backupH.Export)
	mux.HandleFunc("POST /api/backup/restore", s.backupH.Restore)
	mux.HandleFunc("GET /api/backup/settings", s.backupH.GetSettings)
	mux.HandleFunc("PUT /api/backup/settings", s.backupH.UpdateSettings)
	mux.HandleFunc("GET /api/backup/offsite/status", s.backupH.OffsiteStatus)
	mux.HandleFunc("GET /api/backup/offsite/history", s.backupH.OffsiteHistory)
	mux.HandleFunc("POST /api/backup/offsite/run", s.backupH.OffsiteRunNow)
	mux.HandleFunc("POST /api/backup/offsite/{id}/restore", s.backupH.OffsiteRestore)
	mux.HandleFunc("GET /api/backup/offsite/{id}/download", s.backupH.OffsiteDownload)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
