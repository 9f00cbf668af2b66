package utils

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

// JSON 统一使用的编解码器
var JSON = sonic.ConfigStd

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := JSON.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// DecodeJSON 解析请求体，限制最大读取长度
func DecodeJSON(r io.Reader, limit int64, v interface{}) error {
	return JSON.NewDecoder(io.LimitReader(r, limit)).Decode(v)
}
