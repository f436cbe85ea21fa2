package toolexecutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// CredentialParam holds an opaque handle to a stored authorization grant
	CredentialParam = "credential"
	// AccessTokenParam receives the exchanged short lived access token
	AccessTokenParam = "accessToken"

	shadowCredentialParam = "_credentialId"
	shadowWorkflowParam   = "_workflowId"

	credentialTokenPath = "/internal/oauth/token"
)

// CredentialClient exchanges credential handles for access tokens. Exchanges are
// neither cached nor deduplicated; every invocation performs its own.
type CredentialClient struct {
	baseURL string
	client  *http.Client
	signer  *InternalTokenSigner
}

// NewCredentialClient creates a client for the token-issuing service at baseURL
func NewCredentialClient(baseURL string, client *http.Client, signer *InternalTokenSigner) *CredentialClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &CredentialClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		signer:  signer,
	}
}

type tokenRequest struct {
	CredentialID string `json:"credentialId"`
	WorkflowID   string `json:"workflowId,omitempty"`
}

// Exchange trades a credential handle for an access token
func (c *CredentialClient) Exchange(ctx context.Context, credentialID, workflowID string) (string, error) {
	payload, err := json.Marshal(tokenRequest{CredentialID: credentialID, WorkflowID: workflowID})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	endpoint := c.baseURL + credentialTokenPath
	if workflowID != "" {
		endpoint += "?workflowId=" + url.QueryEscape(workflowID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := attachInternalToken(req, c.signer); err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s", extractErrorMessage(errorInfo{
			status:     resp.StatusCode,
			statusText: statusText(resp),
			data:       body,
		}, directErrorExtractors))
	}

	var token struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response did not include an access token")
	}

	return token.AccessToken, nil
}

// applyCredential exchanges params.credential for an access token, keeps the
// original identifiers in shadow fields and strips the handle and workflow id
// so neither is forwarded to an external system.
func (te *ToolExecutor) applyCredential(ctx context.Context, d *Descriptor, params map[string]interface{}, execCtx *ExecutionContext) error {
	handle, ok := params[CredentialParam]
	if !ok || isEmptyValue(handle) {
		return nil
	}
	credentialID, ok := handle.(string)
	if !ok {
		credentialID = fmt.Sprint(handle)
	}
	workflowID := workflowIDFrom(params, execCtx)

	te.logger.Debug().
		Str("tool", d.ID).
		Str("workflow_id", workflowID).
		Msg("Exchanging credential for access token")

	token, err := te.credentials.Exchange(ctx, credentialID, workflowID)
	te.metrics.RecordCredentialExchange(err == nil)
	if err != nil {
		te.logger.Error().Err(err).Str("tool", d.ID).Msg("Credential exchange failed")
		return newError(KindCredential, d.ID,
			fmt.Sprintf("Failed to obtain credential for %s: %v", d.DisplayName(), err), err)
	}

	params[AccessTokenParam] = token
	params[shadowCredentialParam] = credentialID
	if workflowID != "" {
		params[shadowWorkflowParam] = workflowID
	}
	delete(params, CredentialParam)
	delete(params, "workflowId")

	return nil
}
