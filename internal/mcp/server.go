package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/futurenest-rag/internal/rag"
)

// Server wraps the MCP server with the RAG service.
type Server struct {
	server  *mcp.Server
	service *rag.Service
}

// Config holds server dependencies.
type Config struct {
	Service *rag.Service
	Version string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "futurenest-rag",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a labor-law question from the indexed documents and statute references. Returns the answer with its sources.",
	}, makeAskHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Chunk, embed and index one document. Re-ingesting an id replaces its previous chunks.",
	}, makeIngestDocumentHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_batch",
		Description: "Ingest several documents. Returns a per-document result; one failure does not stop the batch.",
	}, makeIngestBatchHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_templates",
		Description: "List the built-in statute reference documents.",
	}, makeListTemplatesHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_template",
		Description: "Index a statute reference document by id, or all of them when no id is given.",
	}, makeIngestTemplateHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diagnose",
		Description: "Report the embedding provider, generator and vector index status with recommendations.",
	}, makeDiagnoseHandler(cfg.Service))

	return &Server{
		server:  server,
		service: cfg.Service,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
