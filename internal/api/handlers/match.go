package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/bumper/internal/auth"
	"github.com/playmatatu/bumper/internal/config"
	"github.com/playmatatu/bumper/internal/game"
	"go.uber.org/zap"
)

// letters, numbers, punctuation, symbols and space separators
var validName = regexp.MustCompile(`^[\p{L}\p{N}\p{P}\p{S}\p{Zs}]+$`)

type seatRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Passcode    string `json:"passcode,omitempty"`
}

type seatResponse struct {
	MatchID     string       `json:"match_id"`
	Token       string       `json:"token"`
	PlayerID    string       `json:"player_id"`
	Faction     game.Faction `json:"faction"`
	PlayerToken string       `json:"player_token"`
	Private     bool         `json:"private"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

func cleanDisplayName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 50 || !validName.MatchString(name) {
		return "", false
	}
	return name, true
}

func issueSeat(cfg *config.Config, m *game.Match, p *game.Player) (seatResponse, error) {
	ttl := time.Duration(cfg.PlayerTokenMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	pt, err := auth.IssuePlayerToken(cfg.JWTSecret, m.ID, p.ID, string(p.Faction), ttl)
	if err != nil {
		return seatResponse{}, err
	}
	return seatResponse{
		MatchID:     m.ID,
		Token:       m.Token,
		PlayerID:    p.ID,
		Faction:     p.Faction,
		PlayerToken: pt,
		Private:     m.Private,
		ExpiresAt:   m.ExpiresAt,
	}, nil
}

// CreateMatch opens a new match with the caller seated as faction A.
func CreateMatch(mm *game.MatchManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req seatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name required"})
			return
		}
		name, ok := cleanDisplayName(req.DisplayName)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid display_name"})
			return
		}

		m, creator, err := mm.CreateMatch(c.Request.Context(), name, req.Passcode)
		if err != nil {
			logger.Error("create match", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create match"})
			return
		}
		resp, err := issueSeat(mm.Config(), m, creator)
		if err != nil {
			logger.Error("issue player token", zap.String("match_id", m.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create match"})
			return
		}
		c.Header("X-Match-ID", m.ID)
		c.JSON(http.StatusCreated, resp)
	}
}

// JoinMatch seats the caller as faction B of the match named by :token.
func JoinMatch(mm *game.MatchManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req seatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name required"})
			return
		}
		name, ok := cleanDisplayName(req.DisplayName)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid display_name"})
			return
		}

		m, joiner, err := mm.JoinMatch(c.Request.Context(), c.Param("token"), name, req.Passcode)
		switch {
		case errors.Is(err, game.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
			return
		case errors.Is(err, game.ErrMatchFull):
			c.JSON(http.StatusConflict, gin.H{"error": "match already has two players"})
			return
		case errors.Is(err, game.ErrBadPasscode):
			c.JSON(http.StatusForbidden, gin.H{"error": "wrong passcode"})
			return
		case err != nil:
			logger.Error("join match", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join match"})
			return
		}

		resp, err := issueSeat(mm.Config(), m, joiner)
		if err != nil {
			logger.Error("issue player token", zap.String("match_id", m.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join match"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// authorizedMatch resolves :token and checks the bearer is seated in it.
func authorizedMatch(c *gin.Context, mm *game.MatchManager) (*game.Match, *auth.PlayerClaims, bool) {
	claims := playerClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return nil, nil, false
	}
	m, err := mm.GetMatchByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return nil, nil, false
	}
	if claims.MatchID != m.ID || !m.HasPlayer(claims.PlayerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a player in this match"})
		return nil, nil, false
	}
	return m, claims, true
}

// GetMatchState returns the match as the bearer sees it.
func GetMatchState(mm *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, claims, ok := authorizedMatch(c, mm)
		if !ok {
			return
		}
		view, err := m.StateForPlayer(claims.PlayerID)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a player in this match"})
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// GetShotHistory lists the recorded shots of the match.
func GetShotHistory(mm *game.MatchManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, _, ok := authorizedMatch(c, mm)
		if !ok {
			return
		}
		shots, err := mm.ShotHistory(c.Request.Context(), m.ID)
		if err != nil {
			logger.Error("shot history", zap.String("match_id", m.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load shots"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"match_id": m.ID, "shots": shots})
	}
}
