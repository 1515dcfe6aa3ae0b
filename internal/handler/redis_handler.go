package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/student-records-api/pkg/response"
)

// smokeKeyTTL keeps manually written smoke-test keys from accumulating.
const smokeKeyTTL = 10 * time.Minute

// RedisHandler exposes admin-only smoke endpoints against the cache. They
// exist to verify connectivity from inside the deployment, nothing more.
type RedisHandler struct {
	client *redis.Client
}

// NewRedisHandler creates a new handler.
func NewRedisHandler(client *redis.Client) *RedisHandler {
	return &RedisHandler{client: client}
}

// Ping godoc
// @Summary Ping cache
// @Tags Redis
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /redis/ping [get]
func (h *RedisHandler) Ping(c *gin.Context) {
	pong, err := h.client.Ping(c.Request.Context()).Result()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"reply": pong})
}

// Set godoc
// @Summary Write smoke key
// @Tags Redis
// @Produce json
// @Param key query string true "Key"
// @Param value query string true "Value"
// @Success 200 {object} response.Envelope
// @Router /redis/set [post]
func (h *RedisHandler) Set(c *gin.Context) {
	key, value := c.Query("key"), c.Query("value")
	if key == "" {
		response.Error(c, errors.New("key is required"))
		return
	}
	if err := h.client.Set(c.Request.Context(), key, value, smokeKeyTTL).Err(); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"key": key})
}

// Get godoc
// @Summary Read smoke key
// @Tags Redis
// @Produce json
// @Param key query string true "Key"
// @Success 200 {object} response.Envelope
// @Router /redis/get [get]
func (h *RedisHandler) Get(c *gin.Context) {
	key := c.Query("key")
	value, err := h.client.Get(c.Request.Context(), key).Result()
	if err == redis.Nil {
		response.JSON(c, http.StatusOK, gin.H{"key": key, "value": nil})
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"key": key, "value": value})
}

// Del godoc
// @Summary Delete smoke key
// @Tags Redis
// @Produce json
// @Param key query string true "Key"
// @Success 200 {object} response.Envelope
// @Router /redis/del [delete]
func (h *RedisHandler) Del(c *gin.Context) {
	key := c.Query("key")
	removed, err := h.client.Del(c.Request.Context(), key).Result()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"key": key, "removed": removed})
}
