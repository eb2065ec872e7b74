package sentinel

import "time"

// Inbound event names.
const (
	EventAgentState    = "agent_state"
	EventThoughtUpdate = "thought_update"
	EventNodeUpdate    = "node_update"
	EventSystemState   = "system_state"
	EventFixProposal   = "fix_proposal"
)

// Outbound request names.
const (
	RequestState    = "request_state"
	TriggerAnalysis = "trigger_analysis"
	SimulateError   = "simulate_error"
)

// AgentStateUpdate is the payload of an agent_state event.
type AgentStateUpdate struct {
	State         AgentState `json:"state"`
	Thought       string     `json:"thought,omitempty"`
	Signature     string     `json:"signature,omitempty"`
	AffectedNodes []string   `json:"affectedNodes,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

// FixProposal is the subset of a backend fix proposal the console shows.
type FixProposal struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	AffectedFile string    `json:"affected_file"`
	AffectedLine int       `json:"affected_line"`
	Diagnosis    string    `json:"diagnosis"`
	Confidence   float64   `json:"confidence_score"`
	RiskLevel    string    `json:"risk_level"`
	Status       string    `json:"status"`
}

// TriggerAnalysisRequest is the payload of trigger_analysis.
type TriggerAnalysisRequest struct {
	Target string `json:"target"`
}

// SimulateErrorRequest is the payload of simulate_error.
type SimulateErrorRequest struct {
	NodeID string `json:"nodeId"`
	Error  string `json:"error"`
}
