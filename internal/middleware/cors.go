package middleware

import "net/http"

// CORS 放行跨域请求，origin 为空时允许任意来源。
func CORS(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := origin
			if allowed == "" {
				allowed = "*"
			}
			if allowed != "*" || r.Header.Get("Origin") == "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
			} else {
				// 携带 cookie 的请求不能使用通配符
				w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
