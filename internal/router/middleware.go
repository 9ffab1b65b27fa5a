package router

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/blues/pledge/internal/ethereum"
	"github.com/blues/pledge/internal/handler"
	"github.com/blues/pledge/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	HeaderCaller    = "X-Caller-Address"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderRequestID = "X-Request-ID"
)

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, "+
			HeaderCaller+", "+HeaderSignature+", "+HeaderTimestamp+", "+HeaderRequestID)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware 为每个请求分配ID
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Next()
	}
}

// loggerMiddleware 请求日志
func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path = path + "?" + query
		}

		c.Next()

		status := c.Writer.Status()
		line := fmt.Sprintf("[%s] %d %s %s %v %s",
			c.GetString("request_id"), status, c.Request.Method, path, time.Since(start), c.ClientIP())
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("%s", line)
		case status >= http.StatusBadRequest:
			logger.Warn("%s", line)
		default:
			logger.Debug("%s", line)
		}
	}
}

// recoveryMiddleware 捕获 panic
func recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered in %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
				handler.ErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// rateLimitMiddleware 按客户端IP限流，rps 为 0 时不限流
func rateLimitMiddleware(rps int) gin.HandlerFunc {
	limiters := &sync.Map{}

	return func(c *gin.Context) {
		if rps <= 0 {
			c.Next()
			return
		}

		v, _ := limiters.LoadOrStore(c.ClientIP(), rate.NewLimiter(rate.Limit(rps), rps*2))
		if !v.(*rate.Limiter).Allow() {
			c.JSON(http.StatusTooManyRequests, handler.Response{
				Success: false,
				Code:    "RATE_LIMIT",
				Message: "请求过于频繁",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// callerMiddleware 解析调用者地址。要求签名时，写请求必须附带对
// "<METHOD> <PATH>\n<X-Timestamp>" 的 personal_sign 签名。
func callerMiddleware(requireSignature bool, window time.Duration, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(HeaderCaller)
		if header == "" {
			c.Next()
			return
		}
		if !common.IsHexAddress(header) {
			handler.ErrorResponse(c, http.StatusBadRequest, "无效的调用者地址")
			c.Abort()
			return
		}
		caller := common.HexToAddress(header)

		if requireSignature && c.Request.Method != http.MethodGet {
			if err := verifySignature(c, caller, window, now()); err != nil {
				logger.Debug("Rejected signature of %s: %v", caller.Hex(), err)
				handler.ErrorResponse(c, http.StatusUnauthorized, "签名校验失败")
				c.Abort()
				return
			}
		}

		c.Set(handler.CallerKey, caller)
		c.Next()
	}
}

func verifySignature(c *gin.Context, caller common.Address, window time.Duration, now time.Time) error {
	timestamp := c.GetHeader(HeaderTimestamp)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q", timestamp)
	}
	if skew := now.Sub(time.Unix(ts, 0)); skew > window || skew < -window {
		return fmt.Errorf("timestamp outside window: %v", skew)
	}

	var body []byte
	if c.Request.Body != nil {
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	message := ethereum.SignatureMessage(c.Request.Method, c.Request.URL.Path, timestamp, body)
	signer, err := ethereum.RecoverAddress(message, c.GetHeader(HeaderSignature))
	if err != nil {
		return err
	}
	if signer != caller {
		return fmt.Errorf("signed by %s", signer.Hex())
	}
	return nil
}
