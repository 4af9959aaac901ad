package warmup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQuota implements the QuotaChecker contract over Redis with hourly and
// daily per-account windows. Counters are advanced with an atomic Lua script
// so concurrent executors cannot both pass a nearly-exhausted window.
type RedisQuota struct {
	redis *redis.Client

	HourlyLimit int
	DailyLimit  int

	recordScript *redis.Script
	now          func() time.Time
}

// Lua script: check both windows, increment both only if both pass.
const quotaRecordScript = `
local hourKey = KEYS[1]
local dayKey = KEYS[2]
local n = tonumber(ARGV[1])
local hourLimit = tonumber(ARGV[2])
local dayLimit = tonumber(ARGV[3])

local hour = tonumber(redis.call("GET", hourKey) or "0")
local day = tonumber(redis.call("GET", dayKey) or "0")

if hour + n > hourLimit then
    return {0, hour, day}
end
if day + n > dayLimit then
    return {0, hour, day}
end

local newHour = redis.call("INCRBY", hourKey, n)
if newHour == n then
    redis.call("EXPIRE", hourKey, 7200)
end
local newDay = redis.call("INCRBY", dayKey, n)
if newDay == n then
    redis.call("EXPIRE", dayKey, 90000)
end

return {1, newHour, newDay}
`

// NewRedisQuota creates a quota checker with the given per-account limits.
func NewRedisQuota(client *redis.Client, hourlyLimit, dailyLimit int) *RedisQuota {
	return &RedisQuota{
		redis:        client,
		HourlyLimit:  hourlyLimit,
		DailyLimit:   dailyLimit,
		recordScript: redis.NewScript(quotaRecordScript),
		now:          time.Now,
	}
}

// SetClock overrides the quota's time source (used by tests).
func (q *RedisQuota) SetClock(now func() time.Time) { q.now = now }

func (q *RedisQuota) keys(accountID, domain string) (hourKey, dayKey string) {
	now := q.now()
	base := fmt.Sprintf("warmup:quota:%s:%s", accountID, domain)
	hourKey = fmt.Sprintf("%s:hour:%d", base, now.Unix()/3600)
	dayKey = fmt.Sprintf("%s:day:%s", base, now.Format("2006-01-02"))
	return hourKey, dayKey
}

// CheckQuota reports whether the account still has sending budget in both
// the hourly and daily windows.
func (q *RedisQuota) CheckQuota(ctx context.Context, accountID, domain string) (QuotaStatus, error) {
	hourKey, dayKey := q.keys(accountID, domain)

	pipe := q.redis.Pipeline()
	hourCmd := pipe.Get(ctx, hourKey)
	dayCmd := pipe.Get(ctx, dayKey)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return QuotaStatus{}, fmt.Errorf("quota read: %w", err)
	}

	hour, _ := hourCmd.Int()
	day, _ := dayCmd.Int()

	status := QuotaStatus{
		HourlyRemaining: q.HourlyLimit - hour,
		DailyRemaining:  q.DailyLimit - day,
	}
	if status.HourlyRemaining < 0 {
		status.HourlyRemaining = 0
	}
	if status.DailyRemaining < 0 {
		status.DailyRemaining = 0
	}
	status.Available = status.HourlyRemaining > 0 && status.DailyRemaining > 0
	return status, nil
}

// Record atomically consumes n sends from both windows. Returns false when
// either window would be exceeded (nothing is consumed in that case).
func (q *RedisQuota) Record(ctx context.Context, accountID, domain string, n int) (bool, error) {
	hourKey, dayKey := q.keys(accountID, domain)

	result, err := q.recordScript.Run(ctx, q.redis,
		[]string{hourKey, dayKey}, n, q.HourlyLimit, q.DailyLimit).Slice()
	if err != nil {
		return false, fmt.Errorf("quota record: %w", err)
	}
	return result[0].(int64) == 1, nil
}

// UnlimitedQuota is the QuotaChecker used when no Redis is configured:
// every check passes with large remaining windows.
type UnlimitedQuota struct{}

func (UnlimitedQuota) CheckQuota(_ context.Context, _, _ string) (QuotaStatus, error) {
	return QuotaStatus{Available: true, DailyRemaining: 1 << 30, HourlyRemaining: 1 << 30}, nil
}

func (UnlimitedQuota) Record(_ context.Context, _, _ string, _ int) (bool, error) {
	return true, nil
}

var _ QuotaChecker = (*RedisQuota)(nil)
var _ QuotaChecker = UnlimitedQuota{}
