// Package mcp exposes the RAG service as Model Context Protocol tools.
package mcp

import (
	"github.com/bull/futurenest-rag/internal/indexer"
	"github.com/bull/futurenest-rag/internal/prompt"
	"github.com/bull/futurenest-rag/internal/templates"
)

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	// Message is the user question.
	Message string `json:"message" jsonschema:"The question to answer, in Traditional Chinese or English"`
	// History holds earlier turns of the conversation, oldest first.
	History []prompt.Turn `json:"history,omitempty" jsonschema:"Earlier conversation turns with role user or assistant"`
	// TopK is the number of passages to retrieve.
	TopK int `json:"top_k,omitempty" jsonschema:"Number of passages to retrieve (1-50, default 5)"`
	// DocumentIDs restricts retrieval to these documents.
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"Only retrieve from these document ids"`
	// InlineCitations keeps [n] markers in the answer.
	InlineCitations *bool `json:"inline_citations,omitempty" jsonschema:"Keep numeric citation markers in the answer"`
}

// IngestDocumentInput defines the input parameters for the ingest_document tool.
type IngestDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"Stable document id; re-ingesting replaces the document"`
	Text       string `json:"text" jsonschema:"Plain text content of the document"`
}

// IngestDocumentOutput reports the chunks written for one document.
type IngestDocumentOutput struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Upserts    int    `json:"upserts"`
}

// IngestBatchInput defines the input parameters for the ingest_batch tool.
type IngestBatchInput struct {
	Documents []indexer.Document `json:"documents" jsonschema:"Documents to ingest, each with document_id and text"`
}

// ListTemplatesInput defines the input parameters for the list_templates tool.
// This tool takes no parameters.
type ListTemplatesInput struct{}

// ListTemplatesOutput contains the registered reference documents.
type ListTemplatesOutput struct {
	Templates []templates.Meta `json:"templates"`
	Count     int              `json:"count"`
}

// IngestTemplateInput defines the input parameters for the ingest_template tool.
type IngestTemplateInput struct {
	// TemplateID selects one template; empty ingests all of them.
	TemplateID string `json:"template_id,omitempty" jsonschema:"Template id to ingest; omit to ingest every template"`
}

// DiagnoseInput defines the input parameters for the diagnose tool.
// This tool takes no parameters.
type DiagnoseInput struct{}
