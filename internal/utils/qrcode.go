package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// 二维码尺寸范围（像素）
const (
	DefaultQRSize = 320
	minQRSize     = 64
	maxQRSize     = 1024
)

// GameLink 前端对局页地址
func GameLink(frontURL, gameURL string) string {
	return strings.TrimRight(frontURL, "/") + "/" + url.PathEscape(gameURL)
}

// GameQRCode 生成对局页地址的二维码 PNG
func GameQRCode(frontURL, gameURL string, size int) ([]byte, error) {
	if gameURL == "" {
		return nil, fmt.Errorf("game url 不能为空")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	if size < minQRSize || size > maxQRSize {
		return nil, fmt.Errorf("二维码尺寸必须在%d-%d之间", minQRSize, maxQRSize)
	}
	return qrcode.Encode(GameLink(frontURL, gameURL), qrcode.Medium, size)
}
