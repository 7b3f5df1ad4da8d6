// Package assistant forwards chat messages and document uploads to the
// external retrieval assistant.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"smartassist/pkg/client"
	apperrors "smartassist/pkg/errors"
	"smartassist/pkg/logger"
	"smartassist/pkg/middleware"
	"smartassist/pkg/model"
	"smartassist/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

const serviceName = "Assistant"

type Gateway interface {
	Chat(ctx context.Context, req *model.ChatRequest) (*model.ChatReply, error)
	IndexDocument(ctx context.Context, filename string, content io.Reader) (*model.DocumentResult, error)
}

type gateway struct {
	client   *client.HttpClient
	validate *validator.Validate
	log      *logger.Logger
}

// NewGateway returns a gateway calling the assistant through httpClient. When
// the client has no base URL every call fails with SERVICE_UNAVAILABLE.
func NewGateway(httpClient *client.HttpClient, log *logger.Logger) Gateway {
	return &gateway{
		client:   httpClient,
		validate: validator.New(),
		log:      log,
	}
}

func (g *gateway) Chat(ctx context.Context, req *model.ChatRequest) (*model.ChatReply, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Chat request cannot be empty")
	}
	msg := model.ChatRequest{
		Message: sanitizer.NormalizeText(req.Message),
		UserID:  sanitizer.TrimAndNormalize(req.UserID),
	}
	if msg.Message == "" {
		return nil, apperrors.InvalidInput("Message cannot be empty")
	}
	if msg.UserID == "" {
		msg.UserID = model.DefaultChatUserID
	}
	if err := g.validate.Struct(&msg); err != nil {
		return nil, apperrors.Validation("Invalid chat request", map[string]any{"error": err.Error()})
	}
	if !g.configured() {
		return nil, apperrors.Unavailable(serviceName)
	}

	resp, err := g.client.POSTWithHeaders(ctx, "/chat", msg, requestHeaders(ctx))
	if err != nil {
		return nil, g.transportError(ctx, "chat", err)
	}
	if err := g.statusError("chat", resp); err != nil {
		return nil, err
	}

	var reply model.ChatReply
	if err := resp.DecodeJSON(&reply); err != nil {
		g.log.Error("Assistant returned an undecodable chat reply", "error", err)
		return nil, apperrors.Unavailable(serviceName)
	}
	if reply.Type == "" {
		reply.Type = model.ReplyAnswer
	}

	g.log.Info("Chat answered", "user_id", msg.UserID, "type", reply.Type)
	return &reply, nil
}

func (g *gateway) IndexDocument(ctx context.Context, filename string, content io.Reader) (*model.DocumentResult, error) {
	if !g.configured() {
		return nil, apperrors.Unavailable(serviceName)
	}

	resp, err := g.client.POSTFile(ctx, "/documents", "file", filename, content)
	if err != nil {
		return nil, g.transportError(ctx, "documents", err)
	}
	if err := g.statusError("documents", resp); err != nil {
		return nil, err
	}

	result := model.DocumentResult{Status: model.DocumentIndexed, Filename: filename}
	if len(resp.Body) > 0 {
		if err := resp.DecodeJSON(&result); err != nil {
			g.log.Warn("Assistant returned an undecodable upload reply", "error", err)
		}
	}
	if result.Filename == "" {
		result.Filename = filename
	}

	g.log.Info("Document indexed", "filename", result.Filename, "status", result.Status)
	return &result, nil
}

func (g *gateway) configured() bool {
	return g.client != nil && g.client.BaseURL != ""
}

func (g *gateway) transportError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		g.log.Warn("Assistant call timed out", "operation", op, "error", err)
		return apperrors.Timeout("Assistant did not answer in time")
	}
	g.log.Error("Assistant call failed", "operation", op, "error", err)
	return apperrors.Unavailable(serviceName)
}

// statusError maps upstream client errors to INVALID_INPUT and everything
// else that is not a success to SERVICE_UNAVAILABLE.
func (g *gateway) statusError(op string, resp *client.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	message := client.GetErrorMessage(resp)
	g.log.Warn("Assistant returned an error", "operation", op, "status", resp.StatusCode, "message", message)

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return apperrors.InvalidInput(fmt.Sprintf("assistant rejected the request: %s", message))
	}
	return apperrors.Unavailable(serviceName)
}

func requestHeaders(ctx context.Context) map[string]string {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		return map[string]string{middleware.RequestIDHeader: id}
	}
	return nil
}
