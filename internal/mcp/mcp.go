// Package mcp implements the Model Context Protocol server for SurveyKong.
//
// The MCP server exposes survey generation and workflow orchestration to
// MCP-compatible AI agents: tools mirror the HTTP generation endpoints,
// resources expose project state.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/surveykong/surveykong/internal/model"
	"github.com/surveykong/surveykong/internal/orchestrator"
)

// Store is the read surface the MCP resources need.
type Store interface {
	ListProjects(ctx context.Context, limit, offset int) ([]model.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
}

// Server wraps the MCP server with SurveyKong's agent and orchestration layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	store     Store
	orch      *orchestrator.Orchestrator
	agents    orchestrator.Agents
	logger    *slog.Logger
}

// New creates and configures an MCP server with all resources and tools.
func New(store Store, orch *orchestrator.Orchestrator, agents orchestrator.Agents, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		orch:   orch,
		agents: agents,
		logger: logger.With("component", "mcp"),
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"surveykong",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// surveykong://projects/recent — most recently created projects.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"surveykong://projects/recent",
			"Recent Projects",
			mcplib.WithResourceDescription("Most recently created survey projects with their workflow state"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleProjectsRecent,
	)

	// surveykong://project/{id}/status — one project's workflow position.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"surveykong://project/{id}/status",
			"Project Status",
			mcplib.WithTemplateDescription("Workflow status for a specific survey project"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleProjectStatus,
	)
}

func (s *Server) registerTools() {
	// surveykong_generate_spec — research question to survey specification.
	s.mcpServer.AddTool(
		mcplib.NewTool("surveykong_generate_spec",
			mcplib.WithDescription("Generate a structured survey specification from a research question"),
			mcplib.WithString("question", mcplib.Description("Research question or goal"), mcplib.Required()),
		),
		s.handleGenerateSpec,
	)

	// surveykong_update_spec — revise an existing specification.
	s.mcpServer.AddTool(
		mcplib.NewTool("surveykong_update_spec",
			mcplib.WithDescription("Revise an existing survey specification with requested changes"),
			mcplib.WithString("spec", mcplib.Description("Current specification as JSON"), mcplib.Required()),
			mcplib.WithString("changes", mcplib.Description("Requested changes in natural language"), mcplib.Required()),
		),
		s.handleUpdateSpec,
	)

	// surveykong_generate_survey — specification to deliverable questions.
	s.mcpServer.AddTool(
		mcplib.NewTool("surveykong_generate_survey",
			mcplib.WithDescription("Generate deliverable survey questions from a survey specification"),
			mcplib.WithString("spec", mcplib.Description("Survey specification as JSON"), mcplib.Required()),
		),
		s.handleGenerateSurvey,
	)

	// surveykong_generate_cohort — specification to recruitment criteria.
	s.mcpServer.AddTool(
		mcplib.NewTool("surveykong_generate_cohort",
			mcplib.WithDescription("Generate cohort recruitment criteria from a survey specification"),
			mcplib.WithString("spec", mcplib.Description("Survey specification as JSON"), mcplib.Required()),
		),
		s.handleGenerateCohort,
	)

	// surveykong_run_workflow — full pipeline in one call.
	s.mcpServer.AddTool(
		mcplib.NewTool("surveykong_run_workflow",
			mcplib.WithDescription("Run the full survey pipeline from research question to analysis report, persisting every stage"),
			mcplib.WithString("question", mcplib.Description("Research question or goal"), mcplib.Required()),
			mcplib.WithString("project_name", mcplib.Description("Name for the created project")),
			mcplib.WithString("description", mcplib.Description("Description for the created project")),
		),
		s.handleRunWorkflow,
	)
}

func (s *Server) handleProjectsRecent(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	projects, err := s.store.ListProjects(ctx, 20, 0)
	if err != nil {
		return nil, fmt.Errorf("mcp: recent projects: %w", err)
	}

	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal projects: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "surveykong://projects/recent",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleProjectStatus(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI

	// Parse the project ID out of surveykong://project/{id}/status.
	var idStr string
	if _, err := fmt.Sscanf(uri, "surveykong://project/%s", &idStr); err != nil {
		return nil, fmt.Errorf("mcp: invalid project status URI: %s", uri)
	}
	idStr, _ = strings.CutSuffix(idStr, "/status")

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid project id in URI %s: %w", uri, err)
	}

	status, err := s.orch.GetProjectStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mcp: project status: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal status: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleGenerateSpec(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	question := request.GetString("question", "")
	if question == "" {
		return errorResult("question is required"), nil
	}
	if len(question) > model.MaxResearchQuestionLen {
		return errorResult("question is too long"), nil
	}

	art, err := s.agents.Spec.Generate(ctx, question)
	if err != nil {
		return errorResult(fmt.Sprintf("spec generation failed: %v", err)), nil
	}
	return artifactResult(art)
}

func (s *Server) handleUpdateSpec(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	changes := request.GetString("changes", "")
	if changes == "" {
		return errorResult("changes is required"), nil
	}

	spec, result := specArgument(request)
	if result != nil {
		return result, nil
	}

	art, err := s.agents.Spec.Update(ctx, spec, changes)
	if err != nil {
		return errorResult(fmt.Sprintf("spec update failed: %v", err)), nil
	}
	return artifactResult(art)
}

func (s *Server) handleGenerateSurvey(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	spec, result := specArgument(request)
	if result != nil {
		return result, nil
	}

	art, err := s.agents.Survey.Generate(ctx, spec, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("survey generation failed: %v", err)), nil
	}
	return artifactResult(art)
}

func (s *Server) handleGenerateCohort(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	spec, result := specArgument(request)
	if result != nil {
		return result, nil
	}

	art, err := s.agents.Cohort.Generate(ctx, spec)
	if err != nil {
		return errorResult(fmt.Sprintf("cohort generation failed: %v", err)), nil
	}
	return artifactResult(art)
}

func (s *Server) handleRunWorkflow(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	question := request.GetString("question", "")
	if question == "" {
		return errorResult("question is required"), nil
	}
	if len(question) > model.MaxResearchQuestionLen {
		return errorResult("question is too long"), nil
	}

	projectName := request.GetString("project_name", "")
	description := request.GetString("description", "")

	analysis, projectID, err := s.orch.OrchestrateFullWorkflow(ctx, question, projectName, description)
	if err != nil {
		return errorResult(fmt.Sprintf("workflow failed: %v", err)), nil
	}

	resultData, err := json.MarshalIndent(map[string]any{
		"project_id": projectID,
		"analysis":   analysis,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal workflow result: %w", err)
	}

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

// specArgument parses the "spec" tool argument. On failure the second return
// value is the error result to hand back to the caller.
func specArgument(request mcplib.CallToolRequest) (model.SurveySpec, *mcplib.CallToolResult) {
	raw := request.GetString("spec", "")
	if raw == "" {
		return model.SurveySpec{}, errorResult("spec is required")
	}
	var spec model.SurveySpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return model.SurveySpec{}, errorResult(fmt.Sprintf("invalid spec JSON: %v", err))
	}
	if spec.Title == "" {
		return model.SurveySpec{}, errorResult("spec must have a title")
	}
	return spec, nil
}

func artifactResult[T any](art model.Artifact[T]) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal artifact: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
