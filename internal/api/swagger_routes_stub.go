//go:build !swagger

package api

import "github.com/gin-gonic/gin"

// 默认构建不带调试页面，/openapi 照常提供
func registerSwaggerRoutes(*gin.Engine) {}
