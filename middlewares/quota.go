package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ticketdesk/metrics"
)

type QuotaRule struct {
	Limit  int                       // 視窗內允許的請求數
	Window time.Duration             // 視窗大小
	KeyFn  func(*gin.Context) string // 空字串 = 不計
}

// Quota counts requests per key in Redis and answers 429 past the limit.
// A Redis failure lets the request through.
func Quota(rdb *redis.Client, rule QuotaRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.KeyFn(c)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		n, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		// 第一次建立 key 才設定視窗
		if n == 1 {
			_ = rdb.Expire(ctx, key, rule.Window).Err()
		}
		if int(n) > rule.Limit {
			metrics.Throttled.WithLabelValues("quota").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Usage quota exceeded. Please try again later.",
			})
			return
		}
		c.Header("X-Quota-Used", fmt.Sprintf("%d/%d", n, rule.Limit))
		c.Next()
	}
}
