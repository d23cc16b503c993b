package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DarkSmileee/BlockShelf/api/controllers"
	"github.com/DarkSmileee/BlockShelf/api/middleware"
	"github.com/DarkSmileee/BlockShelf/internal/appconfig"
	"github.com/DarkSmileee/BlockShelf/internal/backup"
	"github.com/DarkSmileee/BlockShelf/internal/catalog"
	"github.com/DarkSmileee/BlockShelf/internal/collab"
	"github.com/DarkSmileee/BlockShelf/internal/enrich"
	"github.com/DarkSmileee/BlockShelf/internal/inventory"
	"github.com/DarkSmileee/BlockShelf/internal/lookup"
	"github.com/DarkSmileee/BlockShelf/internal/notes"
	"github.com/DarkSmileee/BlockShelf/internal/share"
	"github.com/DarkSmileee/BlockShelf/internal/users"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
	"github.com/DarkSmileee/BlockShelf/pkg/redis"
)

// NewRouter wires every HTTP surface: the public health and auth
// endpoints, the unauthenticated share gate, and the bearer-token API.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database db.Pinger,
	redisClient *redis.Client,
	usersService users.Service,
	appConfigService appconfig.Service,
	collabService collab.Service,
	shareService share.Service,
	inventoryService inventory.Service,
	lookupService lookup.Service,
	enrichService enrich.Service,
	notesService notes.Service,
	backupService backup.Service,
	bootstrapService catalog.BootstrapService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, database, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(usersService, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(usersService, logg))
		})

		// The share gate authenticates by token alone.
		r.Get("/share/{token}", controllers.SharedInventory(shareService, inventoryService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/auth/me", controllers.AuthMe(usersService, logg))
			r.Get("/invites/accept/{token}", controllers.InviteAccept(collabService, logg))

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", controllers.InventoryList(inventoryService, logg))
				r.Post("/", controllers.InventoryCreate(inventoryService, logg))
				r.Patch("/{itemID}", controllers.InventoryUpdate(inventoryService, logg))
				r.Delete("/{itemID}", controllers.InventoryDelete(inventoryService, logg))
				r.Post("/wipe", controllers.InventoryWipe(inventoryService, logg))
				r.Get("/export", controllers.InventoryExport(inventoryService, logg))
				r.Post("/import", controllers.InventoryImport(inventoryService, logg))
				r.Get("/check-duplicate", controllers.InventoryCheckDuplicate(inventoryService, logg))
				r.Post("/bulk-update/batch", controllers.EnrichBatch(enrichService, logg))
			})

			r.Get("/lookup", controllers.PartLookup(lookupService, logg))

			r.Route("/settings", func(r chi.Router) {
				r.Get("/preferences", controllers.PreferencesGet(usersService, logg))
				r.Put("/preferences", controllers.PreferencesUpdate(usersService, logg))

				r.Route("/invites", func(r chi.Router) {
					r.Get("/", controllers.InviteList(collabService, logg))
					r.Post("/", controllers.InviteCreate(collabService, logg))
					r.Post("/{inviteID}/revoke", controllers.InviteRevoke(collabService, logg))
					r.Patch("/{inviteID}", controllers.InviteUpdate(collabService, logg))
					r.Delete("/{inviteID}", controllers.InviteDelete(collabService, logg))
				})

				r.Get("/shared-with-me", controllers.SharedWithMe(collabService, logg))

				r.Route("/share", func(r chi.Router) {
					r.Get("/", controllers.ShareGet(shareService, logg))
					r.Post("/", controllers.ShareCreate(shareService, logg))
					r.Post("/revoke", controllers.ShareRevoke(shareService, logg))
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireStaff(logg))
					r.Get("/config", controllers.SiteConfigGet(appConfigService, logg))
					r.Put("/config", controllers.SiteConfigUpdate(appConfigService, logg))
					r.Post("/bootstrap/prepare", controllers.BootstrapPrepare(bootstrapService, logg))
					r.Post("/bootstrap/run", controllers.BootstrapRun(bootstrapService, logg))
				})
			})

			r.Route("/notes", func(r chi.Router) {
				r.Get("/", controllers.NotesList(notesService, logg))
				r.Post("/", controllers.NoteCreate(notesService, logg))
				r.Patch("/{noteID}", controllers.NoteUpdate(notesService, logg))
				r.Delete("/{noteID}", controllers.NoteDelete(notesService, logg))
			})

			r.Route("/backups", func(r chi.Router) {
				r.Get("/", controllers.BackupsList(backupService, logg))
				r.Post("/", controllers.BackupCreate(backupService, logg))
				r.Delete("/{backupID}", controllers.BackupDelete(backupService, logg))
			})
		})
	})

	return r
}
