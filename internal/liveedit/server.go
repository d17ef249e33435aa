package liveedit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/codexec/codexec/internal/editor"
	"github.com/codexec/codexec/internal/language"
	"github.com/codexec/codexec/internal/syntax"
	"github.com/codexec/codexec/internal/wspool"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // CLI/SDK directly connecting
		}
		return strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "https://localhost")
	},
}

// Server accepts live-edit connections and keeps the edit buffer cache and
// connection pool current.
type Server struct {
	cache *editor.Cache
	pool  *wspool.Pool
}

// NewServer builds a live-edit server over the shared cache and pool.
func NewServer(cache *editor.Cache, pool *wspool.Pool) *Server {
	return &Server{cache: cache, pool: pool}
}

// RegisterRoutes mounts the upgrade endpoint on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/", s.handle)
}

func (s *Server) handle(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	peerKey := ws.RemoteAddr().String()
	log.Info().Str("peer", peerKey).Msg("Live-edit connection opened")

	// boundKey names the buffer this connection last edited, so the close
	// path knows which session to drop.
	boundKey := ""

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			s.closeConnection(ws, peerKey, boundKey, err)
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}

		text := Sanitize(string(data))

		var msg Message
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			log.Warn().Err(err).Str("peer", peerKey).Msg("Failed to parse live-edit message")
			if err := ws.WriteMessage(websocket.TextMessage, []byte("Error parsing message: "+err.Error())); err != nil {
				s.closeConnection(ws, peerKey, boundKey, err)
				return nil
			}
			continue
		}

		reply := s.applyMessage(c, peerKey, text, msg, &boundKey)
		if err := ws.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			s.closeConnection(ws, peerKey, boundKey, err)
			return nil
		}
	}
}

// applyMessage admits the peer, updates the buffer, validates the result,
// and renders the reply frame: the sanitized input plus a status tail.
func (s *Server) applyMessage(c echo.Context, peerKey, text string, msg Message, boundKey *string) string {
	lang, err := language.Parse(msg.Language)
	if err != nil {
		return fmt.Sprintf("%s Error: invalid language %q", text, msg.Language)
	}

	key := editor.DeriveKey(lang, msg.SessionID)
	s.pool.Admit(peerKey, msg.SessionID)

	var sess editor.Session
	switch msg.CodeType {
	case CodeTypeFull:
		sess = s.cache.ApplyFull(key, msg.SessionID, lang, msg.Content)
	case CodeTypePatch:
		sess, err = s.cache.ApplyPatches(key, msg.SessionID, lang, msg.Patches)
		if err != nil {
			return fmt.Sprintf("%s Error: invalid code: %s", text, err.Error())
		}
	default:
		return fmt.Sprintf("%s Error: unknown code_type %q", text, msg.CodeType)
	}
	*boundKey = key

	valid := false
	if v := syntax.ForLanguage(lang); v != nil {
		tree, verr := v.Validate(c.Request().Context(), sess.Code)
		if tree != nil {
			tree.Close()
		}
		valid = verr == nil
	}
	if !valid {
		log.Debug().Str("session_id", msg.SessionID).Stringer("language", lang).
			Msg("Buffer failed syntax validation")
	}

	return fmt.Sprintf("%s (Session ID: %s, Language: %s, Code: %s, Syntax Valid: %t)",
		text, msg.SessionID, msg.Language, sess.Code, valid)
}

// closeConnection answers the peer's close, releases the pool slot, and
// drops the buffer the connection was bound to.
func (s *Server) closeConnection(ws *websocket.Conn, peerKey, boundKey string, cause error) {
	if websocket.IsUnexpectedCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Warn().Err(cause).Str("peer", peerKey).Msg("Live-edit connection error")
	} else {
		log.Info().Str("peer", peerKey).Msg("Live-edit connection closed")
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ws.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		log.Debug().Err(err).Str("peer", peerKey).Msg("Failed to send close frame")
	}

	s.pool.Remove(peerKey)
	if boundKey != "" {
		s.cache.Remove(boundKey)
		log.Info().Str("session", boundKey).Msg("Removed edit buffer for closed connection")
	}
}
