package httphandler

import (
	"net/http"
	"slices"

	// Packages
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /conversations
func ConversationListHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/conversations", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				b.RLock()
				result := make([]schema.ConversationInfo, 0, len(b.order))
				for _, id := range b.order {
					result = append(result, schema.ConversationInfo{ConversationID: id})
				}
				b.RUnlock()
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), result)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List conversations in the order they were started",
			},
		})
}

// Path: /conversations/{id}
func ConversationHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodDelete:
				b.forget(r.PathValue("id"))
				w.WriteHeader(http.StatusOK)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Delete: &openapi.Operation{
				Description: "Clear the messages of a conversation",
			},
		})
}

// Path: /conversations/{id}/messages
func MessageListHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				messages := b.Messages(r.PathValue("id"))
				if messages == nil {
					messages = []schema.MessageInfo{}
				}
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), messages)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List the messages of a conversation, oldest first",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (b *Backend) forget(conversation string) {
	b.Lock()
	defer b.Unlock()
	delete(b.conversations, conversation)
	b.order = slices.DeleteFunc(b.order, func(id string) bool { return id == conversation })
}
