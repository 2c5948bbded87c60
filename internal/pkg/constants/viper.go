package constants

const (
	ViperHTTPAddr           = "http.addr"
	ViperPostgresDSN        = "postgres.dsn"
	ViperPostgresRetries    = "postgres.connect_retries"
	ViperRedisAddr          = "redis.addr"
	ViperRedisChannel       = "redis.channel"
	ViperCommitteeRoster    = "review.committee_roster_size"
	ViperCalculationWorkers = "calculation.workers"
	ViperLogLevel           = "log.level"
	ViperLogDevelopment     = "log.development"
)

const (
	HeaderUserID        = "X-User-ID"
	CtxKeyActor         = "actor"
	EnvPrefix           = "MATURITY"
	DefaultRedisChannel = "maturity:submissions"
)
