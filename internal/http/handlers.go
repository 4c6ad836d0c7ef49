package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/chainreactor/quest-relayer/internal/chain"
	"github.com/chainreactor/quest-relayer/internal/registry"
	"github.com/chainreactor/quest-relayer/internal/state"
	"github.com/chainreactor/quest-relayer/internal/txctl"
	"github.com/gin-gonic/gin"
)

func (hs *HTTPServer) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": newStateView(hs.aggregator.Snapshot())})
}

func (hs *HTTPServer) handleRefresh(c *gin.Context) {
	snapshot := hs.aggregator.Refresh(c.Request.Context(), hs.player)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": newStateView(snapshot)})
}

func (hs *HTTPServer) networkView() NetworkView {
	decision := hs.controller.Decision()
	return NetworkView{
		NetworkDecision:   decision,
		RequiredChainName: registry.ChainInfo(decision.RequiredChainId).Name,
		Remediation:       decision.Remediation(),
		SwitchLabel:       decision.SwitchLabel(),
	}
}

func (hs *HTTPServer) handleNetwork(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": hs.networkView()})
}

func (hs *HTTPServer) handleSwitch(c *gin.Context) {
	if hs.switcher == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "wallet cannot switch chains"})
		return
	}
	var req SwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.ChainId == 0 {
		req.ChainId = hs.controller.Decision().RequiredChainId
	}
	if err := hs.switcher.SwitchChain(req.ChainId); err != nil {
		hs.logger.Warnf("Wallet switch to chain %d failed: %v", req.ChainId, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": hs.networkView()})
}

func questIdParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quest id"})
		return 0, false
	}
	return id, true
}

func (hs *HTTPServer) handleQuest(c *gin.Context) {
	id, ok := questIdParam(c)
	if !ok {
		return
	}
	quest, err := hs.aggregator.Quest(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "kind": chain.KindOf(err).String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": quest})
}

func (hs *HTTPServer) handleComplete(c *gin.Context) {
	id, ok := questIdParam(c)
	if !ok {
		return
	}
	lc, err := hs.controller.Submit(c.Request.Context(), id)
	if err != nil {
		var failure *txctl.WriteFailure
		errors.As(err, &failure)
		body := gin.H{"error": err.Error(), "lifecycle": lc}
		if failure != nil {
			body["reason"] = failure.Reason.String()
		}
		switch {
		case errors.Is(err, txctl.ErrAlreadyInFlight):
			c.JSON(http.StatusConflict, body)
		case errors.Is(err, txctl.ErrWrongNetwork):
			body["network"] = hs.networkView()
			c.JSON(http.StatusPreconditionFailed, body)
		default:
			c.JSON(http.StatusBadGateway, body)
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":       "ok",
		"txHash":       lc.TxHash,
		"explorerLink": lc.ExplorerLink(),
		"lifecycle":    lc,
	})
}

func (hs *HTTPServer) handleLifecycle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": newLifecycleView(hs.controller.Lifecycle(), hs.controller.Decision())})
}

// handleLifecycleEvents streams lifecycle transitions as server-sent events,
// starting with the current lifecycle.
func (hs *HTTPServer) handleLifecycleEvents(c *gin.Context) {
	ch := make(chan interface{}, 16)
	hs.eventBus.Subscribe(state.LifecycleTransition, ch)
	defer hs.eventBus.Unsubscribe(state.LifecycleTransition, ch)

	c.SSEvent("lifecycle", newLifecycleView(hs.controller.Lifecycle(), hs.controller.Decision()))
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-ch:
			if lc, ok := ev.(txctl.Lifecycle); ok {
				c.SSEvent("lifecycle", newLifecycleView(lc, hs.controller.Decision()))
			}
			return true
		}
	})
}

func (hs *HTTPServer) handleNotification(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": hs.notifier.Current()})
}

func (hs *HTTPServer) handleTransactions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	entries, err := hs.dbm.ListJournal(limit)
	if err != nil {
		hs.logger.Errorf("List journal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": entries})
}
