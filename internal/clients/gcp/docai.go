package gcp

import (
	"context"
	"fmt"
	"os"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

// DocAIResult is the subset of the processor output the pipeline uses.
type DocAIResult struct {
	Text      string
	PageCount int
}

// DocAIService extracts text from binary document formats through a
// Document AI processor. A nil service means the deployment runs without
// Document AI; plain-text formats are still handled locally.
type DocAIService interface {
	ProcessBytes(ctx context.Context, mimeType string, data []byte) (*DocAIResult, error)
	Close() error
}

// NewDocAIService returns (nil, nil) when DOCAI_PROCESSOR_ID is unset.
func NewDocAIService(log *logger.Logger) (DocAIService, error) {
	processorID := strings.TrimSpace(os.Getenv("DOCAI_PROCESSOR_ID"))
	if processorID == "" {
		return nil, nil
	}
	projectID := strings.TrimSpace(os.Getenv("DOCAI_PROJECT_ID"))
	if projectID == "" {
		return nil, fmt.Errorf("DOCAI_PROJECT_ID required when DOCAI_PROCESSOR_ID is set")
	}
	location := strings.TrimSpace(os.Getenv("DOCAI_LOCATION"))
	if location == "" {
		location = "us"
	}

	serviceLog := log.With("service", "DocAIService")
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)

	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := documentai.NewDocumentProcessorClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	serviceLog.Info("Document AI initialized", "endpoint", endpoint)
	return &docAIService{
		client: client,
		name:   fmt.Sprintf("projects/%s/locations/%s/processors/%s", projectID, location, processorID),
		log:    serviceLog,
	}, nil
}

type docAIService struct {
	client *documentai.DocumentProcessorClient
	name   string
	log    *logger.Logger
}

func (s *docAIService) ProcessBytes(ctx context.Context, mimeType string, data []byte) (*DocAIResult, error) {
	req := &documentaipb.ProcessRequest{
		Name: s.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	}
	resp, err := s.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("process document: %w", err)
	}
	doc := resp.GetDocument()
	return &DocAIResult{
		Text:      doc.GetText(),
		PageCount: len(doc.GetPages()),
	}, nil
}

func (s *docAIService) Close() error {
	return s.client.Close()
}
