package httphandler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// RequestIDHeader carries the request id, generated when absent
	RequestIDHeader = "X-Request-Id"

	echoPrefix  = "echo: "
	defaultCity = "Shanghai"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /chat
func ChatHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/chat", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				var req schema.ChatRequest
				if err := httprequest.Read(r, &req); err != nil {
					_ = httpresponse.Error(w, err)
					return
				} else if err := req.Validate(); err != nil {
					apiError(w, r, "INVALID_REQUEST", err.Error(), true)
					return
				}
				chatJSON(w, r, b, req)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Send a message and wait for the complete reply",
			},
		})
}

// Path: /chat/stream
func StreamHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/chat/stream", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				if acceptType(r) == acceptUnsupported {
					_ = httpresponse.Error(w, httpresponse.Err(http.StatusNotAcceptable))
					return
				}
				req := streamRequest(r)
				if err := req.Validate(); err != nil {
					_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With(err))
					return
				}
				chatStream(w, r, b, req)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Send a message and stream the reply as server-sent events",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// chatJSON replies with the whole echo at once
func chatJSON(w http.ResponseWriter, r *http.Request, b *Backend, req schema.ChatRequest) {
	b.RLock()
	m := b.model(req.ModelID)
	b.RUnlock()
	if m == nil {
		apiError(w, r, "MODEL_NOT_FOUND", "Model not found: "+req.ModelID, false)
		return
	}

	calls := b.runTools(req.Tools, req.Message, nil)
	content := echoPrefix + req.Message
	b.appendMessages(req.ConversationID,
		schema.MessageInfo{Role: schema.RoleUser, Content: req.Message},
		schema.MessageInfo{Role: schema.RoleAssistant, Content: content},
	)
	_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.ChatResponse{
		RequestID:      requestID(w, r),
		ConversationID: req.ConversationID,
		ModelID:        req.ModelID,
		Content:        content,
		ToolCalls:      calls,
	})
}

// chatStream writes the frames of one turn, then done. A failure ends the
// turn with an error frame before done.
func chatStream(w http.ResponseWriter, r *http.Request, b *Backend, req schema.StreamRequest) {
	requestID(w, r)
	out := newFrameWriter(w)
	if out == nil {
		_ = httpresponse.Error(w, httpresponse.ErrInternalError)
		return
	}

	// write returns false when the client has gone away
	write := func(frame stream.Frame) bool {
		if b.delay > 0 {
			select {
			case <-r.Context().Done():
				return false
			case <-time.After(b.delay):
			}
		}
		if err := out.Write(frame); err != nil {
			b.debug("stream write", "conversation", req.ConversationID, "error", err)
			return false
		}
		return true
	}

	// Scripted streams are sent as-is
	if script := b.Script; script != nil {
		for _, frame := range script(req) {
			if !write(frame) {
				return
			}
		}
		return
	}

	b.RLock()
	m := b.model(req.Model)
	b.RUnlock()
	if m == nil {
		if write(stream.Frame{Event: schema.EventError, Data: "Model not found: " + req.Model}) {
			write(stream.Frame{Event: schema.EventDone, Data: schema.EventDone})
		}
		return
	}
	b.appendMessages(req.ConversationID, schema.MessageInfo{Role: schema.RoleUser, Content: req.Message})

	// Skills applied to this turn
	if skills := b.resolveSkills(req.Skills); len(skills) > 0 {
		if !write(jsonFrame(schema.EventSkillApply, skills)) {
			return
		}
	}

	// Tool progress, with the running update sent before each tool result
	ok := true
	b.runTools(req.Tools, req.Message, func(running, done schema.ToolCallInfo) {
		ok = ok && write(jsonFrame(schema.EventToolCallProgress, running))
		ok = ok && write(jsonFrame(schema.EventToolCallProgress, done))
	})
	if !ok {
		return
	}

	// Tokens, each word followed by a space
	var content strings.Builder
	for _, word := range strings.Split(echoPrefix+req.Message, " ") {
		token := word + " "
		if !write(jsonFrame(schema.EventToken, tokenPayload{Token: token})) {
			return
		}
		content.WriteString(token)
	}
	b.appendMessages(req.ConversationID, schema.MessageInfo{Role: schema.RoleAssistant, Content: content.String()})
	write(stream.Frame{Event: schema.EventDone, Data: schema.EventDone})
	b.debug("stream done", "conversation", req.ConversationID, "model", req.Model)
}

// runTools runs the known tools among names, calling fn (if not nil) with
// the running and completed state of each
func (b *Backend) runTools(names []string, message string, fn func(running, done schema.ToolCallInfo)) []schema.ToolCallInfo {
	var result []schema.ToolCallInfo
	seq := 0
	for _, name := range names {
		b.RLock()
		t := b.tool(name)
		b.RUnlock()
		if t == nil {
			continue
		}
		seq++
		start := time.Now()
		running := schema.ToolCallInfo{
			CallID:    fmt.Sprintf("tc-%d", seq),
			ToolName:  t.ToolName,
			Input:     message,
			Status:    schema.ToolStatusRunning,
			StartedAt: start.UnixMilli(),
		}
		done := running
		done.Output = t.run(message)
		done.Status = schema.ToolStatusDone
		done.DurationMs = types.Ptr(time.Since(start).Milliseconds())
		if fn != nil {
			fn(running, done)
		}
		result = append(result, done)
	}
	return result
}

// resolveSkills returns the known skills among refs
func (b *Backend) resolveSkills(refs []string) []schema.SkillApplyInfo {
	b.RLock()
	defer b.RUnlock()
	var result []schema.SkillApplyInfo
	for _, ref := range refs {
		if s := b.skill(ref); s != nil {
			result = append(result, schema.SkillApplyInfo{Name: s.SkillName, Version: s.Version})
		}
	}
	return result
}

// run returns the canned output. An empty message is answered for the
// default city.
func (t *tool) run(message string) string {
	switch {
	case t.output == "":
		return "Current UTC time from MCP mock tool: " + time.Now().UTC().Format(time.RFC3339Nano)
	case strings.Contains(t.output, "%s"):
		if strings.TrimSpace(message) == "" {
			message = defaultCity
		}
		return fmt.Sprintf(t.output, message)
	default:
		return t.output
	}
}

type tokenPayload struct {
	Token string `json:"token"`
}

func jsonFrame(event string, v any) stream.Frame {
	data, err := json.Marshal(v)
	if err != nil {
		return stream.Frame{Event: schema.EventError, Data: err.Error()}
	}
	return stream.Frame{Event: event, Data: string(data)}
}

// streamRequest reads the stream parameters from the query string
func streamRequest(r *http.Request) schema.StreamRequest {
	q := r.URL.Query()
	return schema.StreamRequest{
		ConversationID: q.Get(schema.ParamConversation),
		Model:          q.Get(schema.ParamModel),
		Message:        q.Get(schema.ParamMessage),
		Tools:          q[schema.ParamTools],
		Skills:         q[schema.ParamSkills],
	}
}

// requestID returns the request id, setting it on the response
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	return id
}

// acceptKind classifies the negotiated response format.
type acceptKind int

const (
	acceptAny         acceptKind = iota // no Accept header, or */*
	acceptStream                        // text/event-stream
	acceptUnsupported                   // anything else
)

// acceptType inspects the Accept header of a stream request
func acceptType(r *http.Request) acceptKind {
	header := r.Header.Get("Accept")
	if header == "" {
		return acceptAny
	}
	for _, part := range strings.Split(header, ",") {
		mt := strings.TrimSpace(part)
		if idx := strings.IndexByte(mt, ';'); idx >= 0 {
			mt = strings.TrimSpace(mt[:idx])
		}
		switch mt {
		case "text/event-stream":
			return acceptStream
		case "*/*":
			return acceptAny
		}
	}
	return acceptUnsupported
}
