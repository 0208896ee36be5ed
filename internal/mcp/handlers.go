package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/futurenest-rag/internal/indexer"
	"github.com/bull/futurenest-rag/internal/rag"
	"github.com/bull/futurenest-rag/internal/templates"
)

// makeAskHandler creates the ask tool handler. Only malformed requests
// produce a tool error; retrieval and generation failures degrade the answer.
func makeAskHandler(svc *rag.Service) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, rag.Response, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, rag.Response, error,
	) {
		resp, err := svc.Answer(ctx, rag.Request{
			Message:         input.Message,
			History:         input.History,
			TopK:            input.TopK,
			DocumentIDs:     input.DocumentIDs,
			InlineCitations: input.InlineCitations,
		})
		if err != nil {
			return nil, rag.Response{}, err
		}
		if resp.Sources == nil {
			resp.Sources = []rag.Source{}
		}
		return nil, *resp, nil
	}
}

// makeIngestDocumentHandler creates the ingest_document tool handler.
func makeIngestDocumentHandler(svc *rag.Service) func(
	context.Context, *mcp.CallToolRequest, IngestDocumentInput,
) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestDocumentInput) (
		*mcp.CallToolResult, IngestDocumentOutput, error,
	) {
		chunks, upserts, err := svc.Ingest(ctx, input.DocumentID, input.Text)
		if err != nil {
			return nil, IngestDocumentOutput{}, fmt.Errorf("ingest failed: %w", err)
		}
		return nil, IngestDocumentOutput{
			DocumentID: input.DocumentID,
			Chunks:     chunks,
			Upserts:    upserts,
		}, nil
	}
}

// makeIngestBatchHandler creates the ingest_batch tool handler.
// Per-document failures are reported in the results, not as a tool error.
func makeIngestBatchHandler(svc *rag.Service) func(
	context.Context, *mcp.CallToolRequest, IngestBatchInput,
) (*mcp.CallToolResult, indexer.Report, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestBatchInput) (
		*mcp.CallToolResult, indexer.Report, error,
	) {
		if len(input.Documents) == 0 {
			return nil, indexer.Report{}, errors.New("documents must not be empty")
		}
		return nil, *svc.IngestBatch(ctx, input.Documents, nil), nil
	}
}

// makeListTemplatesHandler creates the list_templates tool handler.
func makeListTemplatesHandler(svc *rag.Service) func(
	context.Context, *mcp.CallToolRequest, ListTemplatesInput,
) (*mcp.CallToolResult, ListTemplatesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListTemplatesInput) (
		*mcp.CallToolResult, ListTemplatesOutput, error,
	) {
		metas := svc.Templates()
		if metas == nil {
			metas = []templates.Meta{}
		}
		return nil, ListTemplatesOutput{
			Templates: metas,
			Count:     len(metas),
		}, nil
	}
}

// makeIngestTemplateHandler creates the ingest_template tool handler.
// An empty template id ingests every registered template.
func makeIngestTemplateHandler(svc *rag.Service) func(
	context.Context, *mcp.CallToolRequest, IngestTemplateInput,
) (*mcp.CallToolResult, indexer.Report, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestTemplateInput) (
		*mcp.CallToolResult, indexer.Report, error,
	) {
		if input.TemplateID == "" {
			return nil, *svc.IngestAllTemplates(ctx, nil), nil
		}

		chunks, upserts, err := svc.IngestTemplate(ctx, input.TemplateID)
		if err != nil {
			if errors.Is(err, templates.ErrNotFound) {
				return nil, indexer.Report{}, fmt.Errorf("unknown template %q", input.TemplateID)
			}
			return nil, indexer.Report{}, fmt.Errorf("ingest failed: %w", err)
		}
		return nil, indexer.Report{
			Results: []indexer.Result{{
				DocumentID: input.TemplateID,
				OK:         true,
				Chunks:     chunks,
				Upserts:    upserts,
			}},
			Succeeded:   1,
			TotalChunks: chunks,
		}, nil
	}
}

// makeDiagnoseHandler creates the diagnose tool handler.
func makeDiagnoseHandler(svc *rag.Service) func(
	context.Context, *mcp.CallToolRequest, DiagnoseInput,
) (*mcp.CallToolResult, rag.Diagnostics, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DiagnoseInput) (
		*mcp.CallToolResult, rag.Diagnostics, error,
	) {
		return nil, svc.Diagnose(ctx), nil
	}
}
