// Package ws is the websocket transport: handshake, admission, and the
// read/write pumps around each connection.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"tribehub/auth"
	"tribehub/domain"
	"tribehub/runtime"
)

type Server struct {
	log        *slog.Logger
	router     *runtime.Router
	admission  auth.IAdmission
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewServer(log *slog.Logger, router *runtime.Router, admission auth.IAdmission, bufferSize int) *Server {
	return &Server{
		log:       log,
		router:    router,
		admission: admission,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced upstream by the API gateway.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufferSize: bufferSize,
	}
}

// ServeHTTP upgrades the channel and runs it until close. The bearer
// credential arrives either as a dedicated query field or as a header-style
// field; both are optional and an invalid one degrades to anonymous.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		credential = r.Header.Get("Authorization")
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := domain.NewConnection()
	s.admission.Admit(conn, credential)

	client := NewClient(socket, conn, s.bufferSize, s.log)
	ctx := r.Context()

	s.router.HandleOpen(ctx, conn, client)
	defer s.router.HandleClose(ctx, conn)

	go client.writePump(ctx)
	client.readPump(ctx, func(raw []byte) {
		s.router.HandleFrame(ctx, conn, client, raw)
	})
}
