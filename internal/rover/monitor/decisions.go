package monitor

import (
	"net/http"
	"strconv"

	"github.com/banshee-data/rover.nav/internal/httputil"
	sqlite "github.com/banshee-data/rover.nav/internal/rover/storage/sqlite"
)

const (
	defaultDecisionLimit = 500
	maxDecisionLimit     = 10000
)

// DecisionSource reads the persisted decision log.
type DecisionSource interface {
	ListDecisions(missionID string, afterID int64, limit int) ([]sqlite.DecisionRecord, error)
}

type decisionsResponse struct {
	MissionID string                  `json:"mission_id"`
	Decisions []sqlite.DecisionRecord `json:"decisions"`
	// NextID is the after_id value that continues from this page.
	NextID int64 `json:"next_id"`
}

// handleDecisions returns the decision log of a mission. Query params:
//   - mission (optional; defaults to the running mission)
//   - after_id (optional; default 0) returns rows logged after that log ID
//   - limit (optional; default 500, max 10000)
func (ws *WebServer) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if ws.decisions == nil {
		httputil.NotFound(w, "decision log not enabled")
		return
	}

	q := r.URL.Query()
	missionID := q.Get("mission")
	if missionID == "" && ws.source != nil {
		missionID = ws.source.Status().MissionID
	}
	if missionID == "" {
		httputil.BadRequest(w, "mission is required")
		return
	}

	var afterID int64
	if v := q.Get("after_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "after_id must be a non-negative integer")
			return
		}
		afterID = n
	}
	limit := defaultDecisionLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDecisionLimit {
			httputil.BadRequest(w, "limit must be between 1 and 10000")
			return
		}
		limit = n
	}

	recs, err := ws.decisions.ListDecisions(missionID, afterID, limit)
	if err != nil {
		logServer("list decisions for %s: %v", missionID, err)
		httputil.InternalServerError(w, "failed to read decision log")
		return
	}

	resp := decisionsResponse{MissionID: missionID, Decisions: recs, NextID: afterID}
	if resp.Decisions == nil {
		resp.Decisions = []sqlite.DecisionRecord{}
	}
	if n := len(recs); n > 0 {
		resp.NextID = recs[n-1].LogID
	}
	httputil.WriteJSONOK(w, resp)
}
