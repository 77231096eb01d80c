// Package docflowclient is a Go client for the docflow approval and audit API.
package docflowclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/docflow-api/pkg/apperror"
)

const defaultTimeout = 10 * time.Second

// Form approval roles accepted by the API.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Client calls the docflow REST API with a bearer token.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout bounds every request. Context deadlines shorten it further.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New builds a client for baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// ToggleFormApproval flips role's approval of a form.
func (c *Client) ToggleFormApproval(ctx context.Context, role string, formID uint) (FormResponse, error) {
	var form FormResponse
	err := c.do(ctx, "toggle form approval", fiber.MethodPut, fmt.Sprintf("/forms/%s/%d/approval", role, formID), nil, &form)
	return form, err
}

// ApproveForm sets role's approval of a form.
func (c *Client) ApproveForm(ctx context.Context, role string, formID uint) (FormResponse, error) {
	var form FormResponse
	err := c.do(ctx, "approve form", fiber.MethodPut, fmt.Sprintf("/forms/%s/%d/approve", role, formID), nil, &form)
	return form, err
}

// DeapproveForm clears role's approval of a form.
func (c *Client) DeapproveForm(ctx context.Context, role string, formID uint) (FormResponse, error) {
	var form FormResponse
	err := c.do(ctx, "deapprove form", fiber.MethodPut, fmt.Sprintf("/forms/%s/%d/deapprove", role, formID), nil, &form)
	return form, err
}

// UnapproveAll clears every approval of a form in one server-side transaction.
func (c *Client) UnapproveAll(ctx context.Context, formID uint) (FormResponse, error) {
	var form FormResponse
	err := c.do(ctx, "unapprove all", fiber.MethodPut, fmt.Sprintf("/forms/%d/unapprove-all", formID), nil, &form)
	return form, err
}

// UnapproveAllSequential clears the client then the admin approval with one call
// each. When the second call fails the first stays applied and the returned
// PartialFailureError names both steps.
func (c *Client) UnapproveAllSequential(ctx context.Context, formID uint) (FormResponse, error) {
	var (
		form      FormResponse
		completed []string
	)
	for _, role := range []string{RoleClient, RoleAdmin} {
		updated, err := c.DeapproveForm(ctx, role, formID)
		if err != nil {
			if len(completed) == 0 {
				return FormResponse{}, err
			}
			return form, &apperror.PartialFailureError{
				Operation: "unapprove all",
				Completed: completed,
				Failed:    role,
				Err:       err,
			}
		}
		form = updated
		completed = append(completed, role)
	}
	return form, nil
}

// SetDocumentStatus sets the reviewer approval of a document to APPROVED or NONE.
func (c *Client) SetDocumentStatus(ctx context.Context, documentID uint, status string) (DocumentResponse, error) {
	var document DocumentResponse
	err := c.do(ctx, "set document status", fiber.MethodPut, fmt.Sprintf("/documents/%d", documentID), DocumentStatusRequest{Status: status}, &document)
	return document, err
}

// ListDirectory returns one page of the documents stored at dir.
func (c *Client) ListDirectory(ctx context.Context, dir string, page, perPage int) (DocumentPage, error) {
	var result DocumentPage
	if err := checkPaging(page, perPage); err != nil {
		return result, err
	}
	path := fmt.Sprintf("/documents/paginated/path?%s", pagingQuery(page, perPage))
	err := c.do(ctx, "list directory", fiber.MethodPost, path, DirectoryRequest{Value: dir}, &result)
	return result, err
}

// RecordActivity appends an entry to the audit trail. The entry must reference
// exactly one document or form.
func (c *Client) RecordActivity(ctx context.Context, payload ActivityRecord) (ActivityLogResponse, error) {
	var entry ActivityLogResponse
	if (payload.DocumentID == nil) == (payload.FormID == nil) {
		return entry, &apperror.ValidationError{
			Field:  "documentID/formID",
			Reason: "exactly one of documentID or formID must be set",
			Key:    "errors.validation.artifact_reference",
		}
	}
	err := c.do(ctx, "record activity", fiber.MethodPost, "/documentActivityLogs", payload, &entry)
	return entry, err
}

// ListActivity returns every audit entry of clientID, newest first.
func (c *Client) ListActivity(ctx context.Context, clientID uint) ([]ActivityLogResponse, error) {
	var entries []ActivityLogResponse
	err := c.do(ctx, "list activity", fiber.MethodGet, fmt.Sprintf("/documentActivityLogs/%d", clientID), nil, &entries)
	return entries, err
}

// PaginateActivity returns one page of clientID's audit entries.
func (c *Client) PaginateActivity(ctx context.Context, clientID uint, page, perPage int) (ActivityLogPage, error) {
	var result ActivityLogPage
	if err := checkPaging(page, perPage); err != nil {
		return result, err
	}
	path := fmt.Sprintf("/documentActivityLogs/%d/paginate?%s", clientID, pagingQuery(page, perPage))
	err := c.do(ctx, "paginate activity", fiber.MethodGet, path, nil, &result)
	return result, err
}

// VerifyChain asks the server to check clientID's audit hash chain.
func (c *Client) VerifyChain(ctx context.Context, clientID uint) (ChainVerification, error) {
	var result ChainVerification
	err := c.do(ctx, "verify chain", fiber.MethodGet, fmt.Sprintf("/documentActivityLogs/%d/verify", clientID), nil, &result)
	return result, err
}

func checkPaging(page, perPage int) error {
	if page < 1 {
		return apperror.NewInvalidArgument("page", page, "must be at least 1")
	}
	if perPage < 1 {
		return apperror.NewInvalidArgument("perPage", perPage, "must be at least 1")
	}
	return nil
}

func pagingQuery(page, perPage int) string {
	values := url.Values{}
	values.Set("page", fmt.Sprint(page))
	values.Set("perPage", fmt.Sprint(perPage))
	return values.Encode()
}

func (c *Client) do(ctx context.Context, op, method, path string, body, target interface{}) error {
	if err := ctx.Err(); err != nil {
		return &apperror.NetworkError{Op: op, Err: err}
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	agent.Timeout(timeout)
	if c.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	if body != nil {
		agent.JSON(body)
	}

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return &apperror.NetworkError{Op: op, Err: errors.Wrap(err, "build request")}
	}

	status, payload, errs := agent.Bytes()
	if len(errs) > 0 {
		return &apperror.NetworkError{Op: op, Err: errors.Wrap(errs[0], "send request")}
	}

	var decoded envelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &decoded); err != nil && status < fiber.StatusBadRequest {
			return errors.Wrap(err, "decode response envelope")
		}
	}

	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return &apperror.HTTPError{Status: status, Message: decoded.Message}
	}

	if target == nil || len(decoded.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Data, target); err != nil {
		return errors.Wrapf(err, "decode %s response", op)
	}
	return nil
}
