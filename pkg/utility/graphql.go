package utility

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/raterudder/tousync/pkg/log"
)

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		ErrorCode string `json:"errorCode"`
	} `json:"extensions"`
}

// graphQLErrors is returned when a response carries errors instead of data.
type graphQLErrors []graphQLError

func (e graphQLErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ge := range e {
		if ge.Extensions.ErrorCode != "" {
			msgs[i] = fmt.Sprintf("%s (%s)", ge.Message, ge.Extensions.ErrorCode)
		} else {
			msgs[i] = ge.Message
		}
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// has returns true if any error carries the given code.
func (e graphQLErrors) has(code string) bool {
	for _, ge := range e {
		if ge.Extensions.ErrorCode == code {
			return true
		}
	}
	return false
}

// graphQL posts a single operation to url and decodes its data into out.
// An empty authorization omits the header.
func graphQL(ctx context.Context, client *http.Client, url, authorization string, req graphQLRequest, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", req.OperationName, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if authorization != "" {
		httpReq.Header.Set("Authorization", authorization)
	}

	log.Ctx(ctx).DebugContext(ctx, "sending graphql operation", slog.String("operation", req.OperationName))
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", req.OperationName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", req.OperationName, err)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors graphQLErrors   `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("graphql api returned status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to decode %s response: %w", req.OperationName, err)
	}
	if len(envelope.Errors) > 0 {
		return envelope.Errors
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql api returned status: %d", resp.StatusCode)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", req.OperationName, err)
	}
	return nil
}
