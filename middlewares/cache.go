package middlewares

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ticketdesk/utils"
)

type cachedBody struct {
	Status int
	Header map[string][]string
	Body   []byte
}

// 把 路徑+參數 轉成 SHA1，避免 Redis key 太長
func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CacheKeyFrom names the Redis key for a cacheable request and its
// namespace ("list", "item", "org"). Only anonymous GETs on public routes
// are cacheable; everything else gets an empty key.
func CacheKeyFrom(c *gin.Context) (string, string) {
	if c.Request.Method != "GET" || c.GetHeader("Authorization") != "" {
		return "", ""
	}
	path := c.FullPath() // 路由模板，例如 /events/:id
	rawq := c.Request.URL.RawQuery

	switch path {
	case "/events", "/organizations/:id/events":
		return utils.CacheEventsList + sha1Hex("GET|"+c.Request.URL.Path+"|"+rawq), "list"
	case "/events/:id":
		id := c.Param("id")
		return utils.CacheEventsItem + id + ":" + sha1Hex("GET|/events/"+id), "item"
	case "/organizations/:id":
		id := c.Param("id")
		return utils.CacheOrgsItem + id + ":" + sha1Hex("GET|/organizations/"+id), "org"
	}
	return "", ""
}

func ResponseCache(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, _ := CacheKeyFrom(c)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		if b, err := rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
			var hit cachedBody
			if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&hit); err == nil {
				for k, vals := range hit.Header {
					for _, v := range vals {
						c.Writer.Header().Add(k, v)
					}
				}
				c.Writer.Header().Set("X-Cache", "HIT")
				c.Status(hit.Status)
				_, _ = c.Writer.Write(hit.Body)
				c.Abort()
				return
			}
		}

		// 沒 hit：攔截回應，寫完再存 Redis
		buf := &bytes.Buffer{}
		bw := &bufferedWriter{ResponseWriter: c.Writer, buf: buf}
		c.Writer = bw
		c.Writer.Header().Set("X-Cache", "MISS")

		c.Next()

		if bw.Status() >= 200 && bw.Status() < 300 {
			header := make(map[string][]string, len(bw.Header()))
			for k, v := range bw.Header() {
				if k == "X-Cache" {
					continue
				}
				header[k] = v
			}
			item := cachedBody{
				Status: bw.Status(),
				Header: header,
				Body:   buf.Bytes(),
			}

			var o bytes.Buffer
			if err := gob.NewEncoder(&o).Encode(item); err == nil {
				_ = rdb.Set(ctx, key, o.Bytes(), ttl).Err()
			}
		}
	}
}

type bufferedWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}
