package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/pkg/apperr"
	"gourdtalk_client/pkg/token"

	"github.com/valyala/fasthttp"
)

// MessageAPI is the REST surface the chat core consumes. The server
// itself is an external collaborator.
type MessageAPI interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListChats(ctx context.Context) ([]domain.RawChatRecord, error)
	ListMessages(ctx context.Context, senderID, receiverID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, payload domain.SendPayload) (domain.Message, error)
	MarkRead(ctx context.Context, ids []string) error
}

// HTTPMessageAPI implement MessageAPI over HTTP with a bearer token.
type HTTPMessageAPI struct {
	base    string
	tokens  token.Provider
	client  *fasthttp.Client
	timeout time.Duration
}

// NewHTTPMessageAPI create HTTPMessageAPI
func NewHTTPMessageAPI(base string, tokens token.Provider, timeout time.Duration) *HTTPMessageAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMessageAPI{
		base:    base,
		tokens:  tokens,
		client:  &fasthttp.Client{},
		timeout: timeout,
	}
}

// ListUsers GET /users
func (a *HTTPMessageAPI) ListUsers(ctx context.Context) ([]domain.User, error) {
	body, err := a.do(ctx, fasthttp.MethodGet, "/users", nil)
	if err != nil {
		return nil, err
	}

	var users []domain.User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, apperr.Wrap(apperr.KindNetworkFailure, "decode users", err)
	}
	return users, nil
}

// ListChats GET /chat/chats
func (a *HTTPMessageAPI) ListChats(ctx context.Context) ([]domain.RawChatRecord, error) {
	body, err := a.do(ctx, fasthttp.MethodGet, "/chat/chats", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Chats []domain.RawChatRecord `json:"chats"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Wrap(apperr.KindNetworkFailure, "decode chats", err)
	}
	return out.Chats, nil
}

// ListMessages GET /chat/messages/{sender}/{receiver}
func (a *HTTPMessageAPI) ListMessages(ctx context.Context, senderID, receiverID string) ([]domain.Message, error) {
	path := fmt.Sprintf("/chat/messages/%s/%s", senderID, receiverID)
	body, err := a.do(ctx, fasthttp.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Wrap(apperr.KindNetworkFailure, "decode messages", err)
	}
	for i := range out.Messages {
		out.Messages[i].Delivery = domain.DeliverySent
	}
	return out.Messages, nil
}

// SendMessage POST /chat/messages
func (a *HTTPMessageAPI) SendMessage(ctx context.Context, payload domain.SendPayload) (domain.Message, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return domain.Message{}, apperr.Wrap(apperr.KindNetworkFailure, "encode send payload", err)
	}

	body, err := a.do(ctx, fasthttp.MethodPost, "/chat/messages", reqBody)
	if err != nil {
		return domain.Message{}, err
	}

	var out struct {
		Message domain.Message `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.Message{}, apperr.Wrap(apperr.KindNetworkFailure, "decode sent message", err)
	}
	out.Message.Delivery = domain.DeliverySent
	return out.Message, nil
}

// MarkRead PUT /chat/messages/read
func (a *HTTPMessageAPI) MarkRead(ctx context.Context, ids []string) error {
	reqBody, err := json.Marshal(struct {
		Messages []string `json:"messages"`
	}{Messages: ids})
	if err != nil {
		return apperr.Wrap(apperr.KindNetworkFailure, "encode read receipt", err)
	}

	_, err = a.do(ctx, fasthttp.MethodPut, "/chat/messages/read", reqBody)
	return err
}

func (a *HTTPMessageAPI) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	tok, err := a.tokens.Token()
	if err != nil || tok == "" {
		return nil, apperr.Wrap(apperr.KindAuthMissing, "no credential for "+path, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(a.base + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+tok)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	timeout := a.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	if err := a.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, apperr.Wrap(apperr.KindNetworkFailure, method+" "+path, err)
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, apperr.New(apperr.KindNetworkFailure,
			fmt.Sprintf("%s %s: status %d", method, path, code))
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}
