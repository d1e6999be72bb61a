package handlers

import (
	"io"
	"log"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"homemeal/internal/middleware"
	"homemeal/internal/notify"
)

// Events is the server-sent-events stream. The subscription lives exactly
// as long as the HTTP connection; unsubscribe runs when the client goes
// away, so the registry never accumulates dead channels.
func Events(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(401, gin.H{"error": "unauthorized"})
			return
		}

		sub := hub.Subscribe(claims.UserID.Hex(), claims.Role)
		defer hub.Unsubscribe(sub.ID)

		log.Println("[NOTIFY] [INFO] subscriber connected:", sub.ID, "role:", claims.Role)

		c.Writer.Header().Set("Content-Type", sse.ContentType)
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		c.Stream(func(w io.Writer) bool {
			select {
			case ev, open := <-sub.C:
				if !open {
					return false
				}
				if err := sse.Encode(w, ev); err != nil {
					return false
				}
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})

		log.Println("[NOTIFY] [INFO] subscriber disconnected:", sub.ID)
	}
}
