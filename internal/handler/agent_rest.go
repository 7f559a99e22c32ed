package handler

import (
	"net/http"
	"time"

	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/queue"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type registerAgentRequest struct {
	AgentID       string              `json:"agent_id"`
	Name          string              `json:"name"`
	Email         string              `json:"email"`
	Departments   []domain.Department `json:"departments"`
	MaxConcurrent int                 `json:"max_concurrent"`
	Skills        []string            `json:"skills"`
}

func registerAgentHandler(q *queue.Queue, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerAgentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if req.AgentID == "" || req.Name == "" || req.MaxConcurrent <= 0 {
			writeError(w, http.StatusBadRequest, "agent_id, name and a positive max_concurrent are required")
			return
		}

		if err := q.RegisterAgent(req.AgentID, req.Name, req.Email, req.Departments, req.MaxConcurrent, req.Skills, time.Now()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
	}
}

type updateStatusRequest struct {
	Status domain.AgentStatus `json:"status"`
}

func agentStatusHandler(q *queue.Queue, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := chi.URLParam(r, "id")
		var req updateStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if err := q.UpdateAgentStatus(r.Context(), agentID, req.Status, time.Now()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func agentPerformanceHandler(q *queue.Queue, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := chi.URLParam(r, "id")
		agent, err := q.AgentPerformance(agentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, agent)
	}
}

func queueStatusHandler(q *queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depts := []domain.Department{
			domain.DepartmentCustomerService,
			domain.DepartmentGroupsQuotes,
			domain.DepartmentGeneralInfo,
			domain.DepartmentSales,
			domain.DepartmentTechnicalSupport,
			domain.DepartmentVIPService,
		}
		depths := make(map[domain.Department]int, len(depts))
		for _, d := range depts {
			depths[d] = q.QueueDepth(d)
		}
		writeJSON(w, http.StatusOK, map[string]any{"queue_depth": depths})
	}
}

type agentMessageRequest struct {
	Text string `json:"text"`
}

func sendAgentMessageHandler(q *queue.Queue, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := chi.URLParam(r, "id")
		var req agentMessageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		qc, err := q.SendAgentMessage(conversationID, req.Text, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, qc)
	}
}

type completeConversationRequest struct {
	AgentID       string  `json:"agent_id"`
	Successful    bool    `json:"successful"`
	ResponseTimeS float64 `json:"response_time_s"`
}

func completeConversationHandler(q *queue.Queue, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := chi.URLParam(r, "id")
		var req completeConversationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if err := q.Complete(r.Context(), req.AgentID, conversationID, req.Successful, req.ResponseTimeS, time.Now()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	}
}
