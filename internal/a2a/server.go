package a2a

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/anatolykoptev/cybereason-mcp/internal/toolreg"
)

// Register mounts the A2A routes on mux. The agent card is public; /a2a
// requires the bearer secret when one is set.
func Register(mux *http.ServeMux, d *toolreg.Dispatcher, baseURL, version, secret string) {
	card := BuildAgentCard(baseURL, version, d.Registry())
	handler := a2asrv.NewHandler(NewExecutor(NewDispatcherInvoker(d)))

	mux.Handle(a2asrv.WellKnownAgentCardPath, a2asrv.NewStaticAgentCardHandler(card))
	mux.Handle("/a2a", bearerAuth(a2asrv.NewJSONRPCHandler(handler), secret))

	if secret == "" {
		slog.Warn("a2a endpoint has no bearer secret; set CYBEREASON_A2A_SECRET")
	}
	slog.Info("a2a protocol enabled",
		slog.String("card_url", baseURL+a2asrv.WellKnownAgentCardPath),
		slog.String("endpoint", baseURL+"/a2a"),
		slog.Int("skills", len(card.Skills)))
}

func bearerAuth(next http.Handler, secret string) http.Handler {
	if secret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(secret)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="a2a"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
