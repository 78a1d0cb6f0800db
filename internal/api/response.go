package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/middleware"
	"github.com/wfunc/banquiz-board/internal/repository"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// PageResponse 分页数据
type PageResponse struct {
	Items      interface{} `json:"items"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"total_pages"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// respondError 按错误码返回统一错误结构
func respondError(c *gin.Context, err error) {
	appErr := errors.As(err)
	c.JSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, middleware.GetRequestID(c)))
}

func badRequest(c *gin.Context, details string) {
	respondError(c, errors.New(errors.ErrInvalidParam, details))
}

// parseInt64Param 解析路径中的整数参数
func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || value <= 0 {
		badRequest(c, "无效的"+name)
		return 0, false
	}
	return value, true
}

// parseOptionalInt64Query 解析可选的整数查询参数
func parseOptionalInt64Query(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, "无效的"+name)
		return nil, false
	}
	return &value, true
}

// parsePagination 解析分页参数
func parsePagination(c *gin.Context) *repository.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return repository.NewPagination(page, pageSize)
}

func pageOf(items interface{}, p *repository.Pagination) PageResponse {
	return PageResponse{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      p.Total,
		TotalPages: p.TotalPages(),
	}
}
