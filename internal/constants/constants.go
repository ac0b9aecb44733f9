package constants

import "time"

// Redis keys
const (
	RedisKeyTablePrefix  = "metadata:table:"
	RedisKeyTableIndex   = "metadata:tables"
	RedisKeyAnswerPrefix = "answer:"
	RedisKeyAnswerIndex  = "answers:index"
)

// Limits
const (
	MaxContextTables   = 5
	MaxGenerationToken = 1024
	MaxTableNameLength = 63
	MaxQueryToolRows   = 1000
)

// Rate limiting for POST /ask
const (
	AskRateLimit     = 2 // requests per second per client
	AskRateBurst     = 5
	AskRateExpiresIn = 3 * time.Minute
)

// Timeouts
const (
	StoreOpTimeout   = 3 * time.Second
	ShutdownTimeout  = 10 * time.Second
	QueryToolTimeout = 30 * time.Second
)

// Answer defaults used when the model omits a field
const (
	DefaultSQLQuery     = "ERROR: could not generate the query."
	DefaultExplanation  = "No explanation could be generated."
	DefaultOptimization = "Consider adding indexes on the columns used in WHERE and JOIN clauses."
)

// API identity
const (
	APIName    = "SQL Query Buddy API"
	APIVersion = "1.0.0"
)
