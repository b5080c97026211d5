package httphandler

import (
	"net/http"

	// Packages
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /models
func ModelListHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/models", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), b.listModels())
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List enabled models",
			},
		})
}

// Path: /tools
func ToolListHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/tools", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), b.listTools())
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List tools",
			},
		})
}

// Path: /skills
func SkillListHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/skills", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), b.listSkills())
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List skills",
			},
		})
}

// Path: /config
func ConfigHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/config", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.AppConfig{
					AuthEnabled: b.AuthEnabled(),
				})
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Return the client configuration",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (b *Backend) listModels() []schema.ModelInfo {
	b.RLock()
	defer b.RUnlock()
	result := make([]schema.ModelInfo, 0, len(b.models))
	for _, m := range b.models {
		if !m.Enabled {
			continue
		}
		result = append(result, schema.ModelInfo{
			Provider:     m.Provider,
			ModelID:      m.ModelID,
			Capabilities: m.Capabilities,
			Health:       m.Health,
		})
	}
	return result
}

func (b *Backend) listTools() []schema.ToolInfo {
	b.RLock()
	defer b.RUnlock()
	result := make([]schema.ToolInfo, 0, len(b.tools))
	for _, t := range b.tools {
		result = append(result, t.ToolInfo)
	}
	return result
}

func (b *Backend) listSkills() []schema.SkillInfo {
	b.RLock()
	defer b.RUnlock()
	result := make([]schema.SkillInfo, 0, len(b.skills))
	for _, s := range b.skills {
		result = append(result, s.SkillInfo)
	}
	return result
}
