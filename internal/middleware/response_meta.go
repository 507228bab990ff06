package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
	requestIDKey    = "request_id"
)

// WithResponseMeta prepares per-request response metadata and stamps the processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
		meta := metaOf(c)
		if _, exists := meta["processing_time_ms"]; !exists {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit records whether the response was served from the availability cache.
func SetCacheHit(c *gin.Context, hit bool) {
	metaOf(c)[cacheHitKey] = hit
}

// SetRequestID copies the correlation id into the response metadata.
func SetRequestID(c *gin.Context, id string) {
	if id == "" {
		return
	}
	metaOf(c)[requestIDKey] = id
}

// ExtractMeta returns the metadata collected for the request, or nil when none was set.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if meta, ok := v.(map[string]interface{}); ok && len(meta) > 0 {
			return meta
		}
	}
	return nil
}

func metaOf(c *gin.Context) map[string]interface{} {
	if v, ok := c.Get(responseMetaKey); ok {
		if meta, ok := v.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
