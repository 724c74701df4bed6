package constants

// Version is reported by the health endpoint and startup log.
const Version = "1.0.0"

// Environment names
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Table names
const (
	TableDonors         = "donors"
	TableInvites        = "invite_links"
	TablePayments       = "payments"
	TableShareLinks     = "share_links"
	TableEvents         = "events"
	TableSystemSettings = "system_settings"
)

// Setting categories
const (
	SettingCategoryPayPal        = "paypal"
	SettingCategoryStripe        = "stripe"
	SettingCategoryPlex          = "plex"
	SettingCategorySMTP          = "smtp"
	SettingCategoryNotifications = "notifications"
	SettingCategoryAnnouncement  = "announcement"
)
