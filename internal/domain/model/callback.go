package model

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"time"
)

// CallbackRequest is a snapshot of one inbound gateway callback. The body is read once so
// token extraction and processing can both look at it.
type CallbackRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Form merges the query string with an urlencoded body. Body values win.
func (r *CallbackRequest) Form() url.Values {
	out := url.Values{}
	for k, v := range r.Query {
		out[k] = append([]string(nil), v...)
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/x-www-form-urlencoded" || len(r.Body) == 0 {
		return out
	}
	body, err := url.ParseQuery(string(r.Body))
	if err != nil {
		return out
	}
	for k, v := range body {
		out[k] = v
	}
	return out
}

// IsJSON reports whether the callback declared a JSON body.
func (r *CallbackRequest) IsJSON() bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// JSON decodes the body into v.
func (r *CallbackRequest) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Value looks key up in the form values, then in a flat JSON object body.
func (r *CallbackRequest) Value(key string) string {
	if v := r.Form().Get(key); v != "" {
		return v
	}
	if !r.IsJSON() {
		return ""
	}
	var body map[string]any
	if err := r.JSON(&body); err != nil {
		return ""
	}
	if s, ok := body[key].(string); ok {
		return s
	}
	return ""
}

// CallbackResponse is what a provider wants written back to the gateway.
type CallbackResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func TextResponse(code int, body string) *CallbackResponse {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &CallbackResponse{StatusCode: code, Header: h, Body: []byte(body)}
}

func JSONResponse(code int, v any) *CallbackResponse {
	b, err := json.Marshal(v)
	if err != nil {
		return TextResponse(http.StatusInternalServerError, "internal error")
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &CallbackResponse{StatusCode: code, Header: h, Body: b}
}

func RedirectResponse(location string) *CallbackResponse {
	h := http.Header{}
	h.Set("Location", location)
	return &CallbackResponse{StatusCode: http.StatusFound, Header: h}
}

// GatewayEvent is an event fetched back from the gateway's API, never taken from the callback body.
type GatewayEvent struct {
	ID       string
	Type     string
	ObjectID string
	Object   map[string]any
}

// CallbackDelivery is one audited inbound callback.
type CallbackDelivery struct {
	ID         string // ULID
	Route      string // token | variant | stripe_source
	Variant    string
	Token      string
	StatusCode int
	Error      string
	Duration   time.Duration
	ReceivedAt time.Time
}
