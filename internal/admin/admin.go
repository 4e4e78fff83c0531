// Package admin is a read-only introspection HTTP API over the
// session and peer stores, grounded on the example corpus's gin
// route-grouping style. Unlike that corpus's push-metrics pairing with
// gorilla/websocket, every endpoint here is pull/read-only: Prometheus
// scraping already covers the push use case.
package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calee0219/upf/internal/n4model"
	"github.com/calee0219/upf/internal/peerstore"
	"github.com/calee0219/upf/internal/sessionstore"
)

// Server is the admin HTTP API.
type Server struct {
	router   *gin.Engine
	sessions *sessionstore.Store
	peers    *peerstore.Store
}

// New builds an admin server bound to the given stores.
func New(sessions *sessionstore.Store, peers *peerstore.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:   gin.New(),
		sessions: sessions,
		peers:    peers,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealthz)

	api := s.router.Group("/api/v1")
	{
		api.GET("/sessions", s.handleSessions)
		api.GET("/sessions/:seid", s.handleSessionDetail)
		api.GET("/peers", s.handlePeers)
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sessionSummary struct {
	LocalSEID uint64    `json:"local_seid"`
	SMFSEID   uint64    `json:"smf_seid"`
	Peer      string    `json:"peer"`
	PDRCount  int       `json:"pdr_count"`
	CreatedAt time.Time `json:"created_at"`
}

func summarize(session *n4model.Session) sessionSummary {
	session.Lock()
	defer session.Unlock()
	peerAddr := ""
	if session.Peer != nil {
		peerAddr = session.Peer.Addr.String()
	}
	return sessionSummary{
		LocalSEID: session.LocalSEID,
		SMFSEID:   session.SMFSEID,
		Peer:      peerAddr,
		PDRCount:  len(session.PDRIDs()),
		CreatedAt: session.CreatedAt,
	}
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions := s.sessions.All()
	out := make([]sessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, summarize(session))
	}
	c.JSON(http.StatusOK, gin.H{"total": len(out), "sessions": out})
}

func (s *Server) handleSessionDetail(c *gin.Context) {
	seid, err := strconv.ParseUint(c.Param("seid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seid must be a 64-bit unsigned integer"})
		return
	}

	session, ok := s.sessions.Get(seid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	session.Lock()
	pdrIDs := session.PDRIDs()
	session.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"summary": summarize(session),
		"pdr_ids": pdrIDs,
	})
}

type peerSummary struct {
	Addr          string `json:"addr"`
	State         string `json:"state"`
	BoundSessions int    `json:"bound_sessions"`
}

func (s *Server) handlePeers(c *gin.Context) {
	peers := s.peers.All()
	out := make([]peerSummary, 0, len(peers))
	for _, peer := range peers {
		out = append(out, peerSummary{
			Addr:          peer.Addr.String(),
			State:         peerState(peer),
			BoundSessions: len(peer.BoundSessions()),
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": len(out), "peers": out})
}

func peerState(peer *n4model.Peer) string {
	if peer.IsAssociated() {
		return n4model.StateAssociated.String()
	}
	return n4model.StateIdle.String()
}

// Run starts the admin HTTP server and blocks until it fails. There is
// no way to stop it short of process exit.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
