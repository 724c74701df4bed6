package http

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"plexward/internal/application/access"
	"plexward/internal/application/admin"
	"plexward/internal/application/notifier"
	"plexward/internal/application/reconciler"
	"plexward/internal/application/settings"
	"plexward/internal/application/sweeper"
	"plexward/internal/domain/event"
	"plexward/internal/infrastructure/auth"
	"plexward/internal/infrastructure/config"
	"plexward/internal/infrastructure/email"
	"plexward/internal/infrastructure/paypal"
	"plexward/internal/infrastructure/plex"
	"plexward/internal/infrastructure/ratelimit"
	"plexward/internal/infrastructure/repository"
	"plexward/internal/infrastructure/stripe"
	"plexward/internal/shared/logger"
)

// Container wires the application graph once and hands the pieces to the
// router and the server command.
type Container struct {
	Reconciler   *reconciler.Reconciler
	Sweeper      *sweeper.Sweeper
	EmailManager *email.Manager
	Settings     *settings.Provider

	adminService  *admin.Service
	shareResolver *admin.ShareResolver
	events        event.Repository
	paypalClient  *paypal.Client
	stripeClient  *stripe.Client
	jwtService    *auth.JWTService
	rateLimiter   ratelimit.RateLimiter
	cfg           *config.Config
	db            *gorm.DB
	logger        logger.Interface
}

// NewContainer builds every service from the database handle and loaded
// configuration. redisClient may be nil; rate limiting is skipped without
// it.
func NewContainer(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logger.Interface) *Container {
	donorRepo := repository.NewDonorRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	eventRepo := repository.NewEventRepository(db)
	shareLinkRepo := repository.NewShareLinkRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	settingsProvider := settings.NewProvider(settingRepo, settings.ProviderConfig{
		Email:         cfg.Email,
		PayPal:        cfg.PayPal,
		Stripe:        cfg.Stripe,
		Plex:          cfg.Plex,
		Notifications: cfg.Notifications,
	}, log)
	settingsService := settings.NewService(settingRepo, settingsProvider, log)

	emailManager := email.NewManager(settingsProvider, log)
	settingsProvider.Subscribe(emailManager)

	paypalClient := paypal.NewClient(settingsProvider, log)
	stripeClient := stripe.NewClient(settingsProvider, log)
	plexClient := plex.NewClient(settingsProvider, log)

	accessCtrl := access.NewController(plexClient, log)
	notif := notifier.NewNotifier(emailManager, settingsProvider, cfg.Server.PublicBaseURL, log)

	rec := reconciler.New(
		donorRepo,
		inviteRepo,
		paymentRepo,
		eventRepo,
		accessCtrl,
		notif,
		paypalClient,
		reconciler.Config{
			InviteStaleThreshold: time.Duration(cfg.Sweeper.InviteStaleDays) * 24 * time.Hour,
			LockTimeout:          time.Duration(cfg.Sweeper.LockTimeoutSeconds) * time.Second,
		},
		log,
	)

	sweep := sweeper.New(
		donorRepo,
		eventRepo,
		rec,
		accessCtrl,
		paypalClient,
		sweeper.Config{
			StatusRefreshInterval: time.Duration(cfg.Sweeper.RefreshIntervalMinutes) * time.Minute,
			DriftRepair:           cfg.Sweeper.DriftRepair,
		},
		log,
	)

	adminService := admin.NewService(
		donorRepo,
		inviteRepo,
		paymentRepo,
		eventRepo,
		shareLinkRepo,
		rec,
		notif,
		settingsService,
		paypalClient,
		stripeClient,
		map[string]admin.CredentialVerifier{
			"paypal": paypalClient,
			"stripe": stripeClient,
			"plex":   plexClient,
		},
		emailManager,
		log,
	)

	shareResolver := admin.NewShareResolver(shareLinkRepo, paypalClient, stripeClient, cfg.Server.PublicBaseURL, log)
	jwtService := auth.NewJWTService(cfg.Admin.SessionSecret, cfg.Admin.TokenTTLHours)

	var limiter ratelimit.RateLimiter
	if redisClient != nil {
		limiter = ratelimit.NewRedisRateLimiter(redisClient)
	}

	return &Container{
		Reconciler:    rec,
		Sweeper:       sweep,
		EmailManager:  emailManager,
		Settings:      settingsProvider,
		adminService:  adminService,
		shareResolver: shareResolver,
		events:        eventRepo,
		paypalClient:  paypalClient,
		stripeClient:  stripeClient,
		jwtService:    jwtService,
		rateLimiter:   limiter,
		cfg:           cfg,
		db:            db,
		logger:        log,
	}
}
