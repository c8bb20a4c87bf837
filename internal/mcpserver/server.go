package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/TobiSchelling/MindCare/internal/analysis"
	"github.com/TobiSchelling/MindCare/internal/assessment"
	"github.com/TobiSchelling/MindCare/internal/knowledge"
	"github.com/TobiSchelling/MindCare/internal/session"
)

// DefaultOwner is the client id used when a tool call names none.
const DefaultOwner = "local"

// Services are the collaborators the tools call into.
type Services struct {
	Assessments *assessment.Service
	Sessions    *session.Store
	Knowledge   *knowledge.Fusion
	Analyzer    *analysis.Orchestrator
}

// New creates the MCP server with every tool registered. owner is the
// default client id; empty uses DefaultOwner.
func New(svc Services, version, owner string) *server.MCPServer {
	if owner == "" {
		owner = DefaultOwner
	}

	s := server.NewMCPServer(
		"mindcare",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	submit := NewSubmitTool(svc.Assessments, owner)
	s.AddTool(submit.Definition(), submit.Handle)

	analyze := NewAnalysisTool(svc.Analyzer, owner)
	s.AddTool(analyze.Definition(), analyze.Handle)

	search := NewSearchTool(svc.Knowledge, owner)
	s.AddTool(search.Definition(), search.Handle)

	sessions := NewSessionsTool(svc.Sessions, owner)
	s.AddTool(sessions.Definition(), sessions.Handle)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `MindCare is a mental-health counseling assistant for students.
Use scl90_submit to score a completed SCL-90 questionnaire, mental_analysis for a
counseling turn, knowledge_search to look up reference material and session_list
to find earlier conversations. Advice is supportive only and never a diagnosis.`
