// Package api defines the response envelope returned to callers of services
// that authenticate with ssoguard.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	Version       = "1.0"
	StatusSuccess = "success"
	StatusFailed  = "Failed"
)

type Params struct {
	ResMsgID string `json:"resmsgid"`
	MsgID    string `json:"msgid"`
	Err      string `json:"err,omitempty"`
	Status   string `json:"status"`
	ErrMsg   string `json:"errmsg,omitempty"`
}

// Response is the envelope every endpoint answers with. It starts out as a
// success and is switched to a failure with Fail.
type Response struct {
	ID           string         `json:"id"`
	Ver          string         `json:"ver"`
	Ts           string         `json:"ts"`
	Params       Params         `json:"params"`
	ResponseCode int            `json:"responseCode"`
	Result       map[string]any `json:"result"`
}

// NewResponse creates a successful response for the named api.
func NewResponse(id string) *Response {
	msgID := uuid.NewString()
	return &Response{
		ID:  id,
		Ver: Version,
		Ts:  time.Now().UTC().Format(time.RFC3339Nano),
		Params: Params{
			ResMsgID: msgID,
			MsgID:    msgID,
			Status:   StatusSuccess,
		},
		ResponseCode: http.StatusOK,
		Result:       map[string]any{},
	}
}

// Fail marks the response as failed with an HTTP status code and message.
func (r *Response) Fail(code int, errMsg string) {
	r.ResponseCode = code
	r.Params.Status = StatusFailed
	r.Params.ErrMsg = errMsg
	r.Params.Err = http.StatusText(code)
}

func (r *Response) Failed() bool {
	return r.Params.Status == StatusFailed
}

func (r *Response) Put(key string, value any) {
	if r.Result == nil {
		r.Result = map[string]any{}
	}
	r.Result[key] = value
}

func (r *Response) Get(key string) any {
	return r.Result[key]
}

// Write sends the response as JSON with ResponseCode as the HTTP status.
func (r *Response) Write(w http.ResponseWriter) {
	body, err := json.Marshal(r)
	if err != nil {
		log.Printf("api: failed to encode response '%s': %v\n", r.ID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.ResponseCode)
	if _, err := w.Write(body); err != nil {
		log.Printf("api: failed to write response '%s': %v\n", r.ID, err)
	}
}
