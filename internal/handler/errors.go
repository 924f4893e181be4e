package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/roomfinder/internal/middleware"
	"github.com/hitoshi/roomfinder/internal/model"
)

// maxRequestBodySize はリクエストボディの最大サイズ（1MB）。
const maxRequestBodySize = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(v); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return false
	}
	return true
}

// writeUnauthorized はコンテキストにユーザーがいない場合の401を書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	middleware.WriteAPIError(w, model.NewInvalidTokenError())
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}
