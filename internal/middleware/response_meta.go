package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey   = "response_meta"
	requestStartKey   = "request_start"
	cacheHitKey       = "cache_hit"
	processingTimeKey = "processing_time_ms"
)

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records cache hit information for the current response.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// ResponseMeta returns the metadata to attach to the response, stamped with the elapsed time.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	meta := ensureMeta(c)
	if v, ok := c.Get(requestStartKey); ok {
		if start, ok := v.(time.Time); ok {
			meta[processingTimeKey] = time.Since(start).Milliseconds()
		}
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
