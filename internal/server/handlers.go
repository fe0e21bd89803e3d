package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/ledger"
	"github.com/assist-by/odyssey/internal/logger"
	"github.com/assist-by/odyssey/internal/signal"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type webhookRequest struct {
	Action     string `json:"action" binding:"required"`
	Passphrase string `json:"passphrase"`
}

func (s *Server) handleWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid payload"})
		return
	}

	if s.cfg.Passphrase != "" &&
		subtle.ConstantTimeCompare([]byte(req.Passphrase), []byte(s.cfg.Passphrase)) != 1 {
		logger.Warnf("웹훅 인증 실패: ip=%s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "unauthorized"})
		return
	}

	action, err := signal.ParseAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	ctx, cancel := s.operationContext(c)
	defer cancel()

	outcome, err := s.cfg.Signals.Handle(ctx, action)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"action":  action,
			"outcome": outcome,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "action": action, "outcome": outcome})
}

func (s *Server) handleStatus(c *gin.Context) {
	pos, err := s.cfg.Positions.Current()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"in_position":     pos != nil,
		"position":        pos,
		"monitor_running": s.cfg.Positions.MonitorRunning(),
	})
}

func (s *Server) handleTrades(c *gin.Context) {
	records, err := s.cfg.Trades.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if records == nil {
		records = []domain.TradeRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"trades": records,
		"stats":  ledger.Summarize(records),
	})
}

func (s *Server) handleClose(c *gin.Context) {
	ctx, cancel := s.operationContext(c)
	defer cancel()

	rec, err := s.cfg.Positions.Close(ctx, decimal.NullDecimal{}, domain.ReasonManualClose)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusOK, gin.H{"status": "flat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "closed", "trade": rec})
}

func (s *Server) handleReset(c *gin.Context) {
	ctx, cancel := s.operationContext(c)
	defer cancel()

	if err := s.cfg.Positions.Reset(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
