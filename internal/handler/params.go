package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/pledge/internal/logic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// CallerKey 鉴权中间件写入的调用者地址
const CallerKey = "caller"

// callerFrom 取出调用者地址，缺失时返回 401
func callerFrom(c *gin.Context) (common.Address, bool) {
	if v, ok := c.Get(CallerKey); ok {
		if addr, ok := v.(common.Address); ok {
			return addr, true
		}
	}
	ErrorResponse(c, http.StatusUnauthorized, "缺少调用者地址")
	return common.Address{}, false
}

func parseProjectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的项目ID")
		return 0, false
	}
	return id, true
}

func parseIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的里程碑序号")
		return 0, false
	}
	return index, true
}

func parseAddress(c *gin.Context, param string) (common.Address, bool) {
	value := c.Param(param)
	if !common.IsHexAddress(value) {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return common.Address{}, false
	}
	return common.HexToAddress(value), true
}

func parsePage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return logic.NormalizePage(page, pageSize)
}
