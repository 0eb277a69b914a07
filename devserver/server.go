package devserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	gorilla "github.com/gorilla/websocket"

	"syncd/config"
)

// Server is an in-memory collaborator speaking the same REST and live protocol as the
// production backend.
type Server struct {
	cfg      *config.Config
	store    *Store
	hub      *Hub
	tokens   *Tokens
	upgrader gorilla.Upgrader
	engine   *gin.Engine
	http     *http.Server
}

func New(cfg *config.Config, store *Store) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		hub:    NewHub(),
		tokens: NewTokens(cfg.JWTSecret),
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.engine = s.routes()
	go s.hub.Run()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(CORSMiddleware(s.cfg.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/login", s.Login)
		auth.POST("/logout", s.Logout)
		auth.GET("/me", s.AuthMiddleware(), s.Me)
	}

	profiles := r.Group("/api/profiles")
	profiles.Use(s.AuthMiddleware())
	{
		profiles.GET("/me", s.Me)
		profiles.PATCH("/me", s.UpdateMe)
		profiles.DELETE("/me", s.DeleteMe)
		profiles.GET("/me/friends", s.MyFriends)
		profiles.GET("/me/businesses", s.MyBusinesses)
		profiles.GET("/me/following", s.MyFollowing)

		profiles.GET("/user/:id", s.UserProfile)
		profiles.GET("/user/:id/friends", s.UserFriends)
		profiles.GET("/user/:id/businesses", s.UserBusinesses)
		profiles.GET("/user/:id/following", s.UserFollowing)

		profiles.GET("/businesses", s.AllBusinesses)
		profiles.POST("/business", s.CreateBusiness)
		profiles.GET("/business/:id", s.BusinessProfile)
		profiles.PATCH("/business/:id", s.UpdateBusiness)
		profiles.DELETE("/business/:id", s.DeleteBusiness)
		profiles.GET("/business/:id/followers", s.BusinessFollowers)
	}

	calendar := r.Group("/api/calendarItems")
	calendar.Use(s.AuthMiddleware())
	{
		calendar.GET("/me", s.MyCalendarItems)
		calendar.POST("/user/item", s.CreateUserItem)
		calendar.PATCH("/user/item/:id", s.UpdateUserItem)
		calendar.DELETE("/user/item/:id", s.DeleteUserItem)
		calendar.GET("/events", s.ListEvents)
		calendar.GET("/events/future", s.ListFutureEvents)
		calendar.POST("/events", s.CreateEvent)
		calendar.PATCH("/events/:id", s.UpdateEvent)
		calendar.POST("/business/attending", s.AttendEvent)
		calendar.GET("/business/:id/public", s.BusinessPublicEvents)
	}

	r.GET("/api/messages/me", s.AuthMiddleware(), s.MyMessages)
	r.GET("/api/notifications/me", s.AuthMiddleware(), s.MyNotifications)

	r.GET("/ws", s.HandleWebSocket)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Store() *Store {
	return s.store
}

// Run serves on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.ServerAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		glog.Infof("[server]listening on %s", s.cfg.ServerAddr)
		errs <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errs:
		s.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.http.Shutdown(shutdownCtx)
		s.Close()
		return err
	}
}

// Close disconnects every live client.
func (s *Server) Close() {
	s.hub.Stop()
}
