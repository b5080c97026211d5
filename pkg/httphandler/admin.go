package httphandler

import (
	"bufio"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"

	// Packages
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	defaultProvider     = "openai"
	defaultSortOrder    = 100
	defaultSkillVersion = "1.0.0"
	codeModelNotFound   = "MODEL_NOT_FOUND"
	codeInvalidRequest  = "INVALID_REQUEST"
)

var (
	reSourceSlug = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)(?:@([A-Za-z0-9_.-]+))?$`)
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /admin/models
func AdminModelHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/admin/models", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				b.RLock()
				result := make([]schema.ModelAdminInfo, 0, len(b.models))
				for _, m := range b.models {
					result = append(result, m.ModelAdminInfo)
				}
				b.RUnlock()
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), result)
			case http.MethodPost:
				var req schema.ModelUpsertRequest
				if err := httprequest.Read(r, &req); err != nil {
					_ = httpresponse.Error(w, err)
					return
				} else if err := req.Validate(); err != nil {
					apiError(w, r, codeInvalidRequest, err.Error(), true)
					return
				}
				info, err := b.upsertModel(req)
				if err != nil {
					apiError(w, r, codeModelNotFound, err.Error(), false)
					return
				}
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), info)
			case http.MethodDelete:
				if err := b.deleteModel(r.URL.Query().Get("modelId")); err != nil {
					apiError(w, r, codeModelNotFound, err.Error(), false)
					return
				}
				w.WriteHeader(http.StatusOK)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List all models, including disabled ones",
			},
			Post: &openapi.Operation{
				Description: "Create or replace a dynamic model",
			},
			Delete: &openapi.Operation{
				Description: "Delete a dynamic model",
			},
		})
}

// Path: /admin/models/{id}/toggle
func AdminModelToggleHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/admin/models/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPatch:
				resp, err := b.toggleModel(r.PathValue("id"))
				if err != nil {
					apiError(w, r, codeModelNotFound, err.Error(), false)
					return
				}
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), resp)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Patch: &openapi.Operation{
				Description: "Enable or disable a model",
			},
		})
}

// Path: /admin/skills
func AdminSkillHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/admin/skills", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), b.listSkills())
			case http.MethodPost:
				var req schema.SkillUpsertRequest
				if err := httprequest.Read(r, &req); err != nil {
					_ = httpresponse.Error(w, err)
					return
				} else if err := req.Validate(); err != nil {
					apiError(w, r, codeInvalidRequest, err.Error(), true)
					return
				}
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), b.upsertSkill(req.SkillName, req.Version, req.Content))
			case http.MethodDelete:
				q := r.URL.Query()
				if err := b.deleteSkill(q.Get("skillName"), q.Get("version")); err != nil {
					apiError(w, r, codeModelNotFound, err.Error(), false)
					return
				}
				w.WriteHeader(http.StatusOK)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List all skills",
			},
			Post: &openapi.Operation{
				Description: "Create or replace a dynamic skill",
			},
			Delete: &openapi.Operation{
				Description: "Delete a dynamic skill, or every version when none is given",
			},
		})
}

// Path: /admin/skills/import-sh
func AdminSkillScriptHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/admin/skills/import-sh", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				var req schema.SkillImportScriptRequest
				if err := httprequest.Read(r, &req); err != nil {
					_ = httpresponse.Error(w, err)
					return
				} else if strings.TrimSpace(req.Script) == "" {
					apiError(w, r, codeInvalidRequest, "script is required", true)
					return
				}
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), b.importScript(req.Script))
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Import skills from a script, one skill per line",
			},
		})
}

// Path: /admin/skills/import-source
func AdminSkillSourceHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/admin/skills/import-source", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				var req schema.SkillImportSourceRequest
				if err := httprequest.Read(r, &req); err != nil {
					_ = httpresponse.Error(w, err)
					return
				} else if strings.TrimSpace(req.Source) == "" {
					apiError(w, r, codeInvalidRequest, "source is required", true)
					return
				}
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), b.importSource(req.Source))
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Import a skill from an owner/repo[@skill] source",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - MODELS

func (b *Backend) upsertModel(req schema.ModelUpsertRequest) (schema.ModelAdminInfo, error) {
	b.Lock()
	defer b.Unlock()
	for _, m := range b.models {
		if m.ModelID == req.ModelID && m.Source == schema.SourceBuiltin {
			return schema.ModelAdminInfo{}, fmt.Errorf("builtin model cannot be replaced: %s", req.ModelID)
		}
	}

	info := schema.ModelAdminInfo{
		ModelID:      req.ModelID,
		Provider:     req.Provider,
		DisplayName:  req.DisplayName,
		Enabled:      true,
		Source:       schema.SourceDynamic,
		Editable:     true,
		Capabilities: req.Capabilities,
		Health:       schema.HealthUp,
	}
	if info.Provider == "" {
		info.Provider = defaultProvider
	}
	if info.DisplayName == "" {
		info.DisplayName = req.ModelName
	}
	if info.Capabilities == nil {
		info.Capabilities = &schema.CapabilitySet{Chat: true, Tools: true, JSONMode: true}
	}
	order := defaultSortOrder
	if req.SortOrder != nil {
		order = *req.SortOrder
	}
	b.putModel(&model{info, order})
	return info, nil
}

func (b *Backend) deleteModel(id string) error {
	b.Lock()
	defer b.Unlock()
	i := slices.IndexFunc(b.models, func(m *model) bool { return m.ModelID == id })
	switch {
	case i < 0:
		return fmt.Errorf("dynamic model not found: %s", id)
	case b.models[i].Source == schema.SourceBuiltin:
		return fmt.Errorf("builtin model cannot be deleted: %s", id)
	}
	b.models = slices.Delete(b.models, i, i+1)
	return nil
}

func (b *Backend) toggleModel(id string) (schema.ModelToggleResponse, error) {
	b.Lock()
	defer b.Unlock()
	for _, m := range b.models {
		if m.ModelID == id {
			m.Enabled = !m.Enabled
			return schema.ModelToggleResponse{ModelID: id, Enabled: m.Enabled}, nil
		}
	}
	return schema.ModelToggleResponse{}, fmt.Errorf("model not found: %s", id)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - SKILLS

func (b *Backend) upsertSkill(name, version, content string) schema.SkillInfo {
	if version == "" {
		version = defaultSkillVersion
	}
	info := schema.SkillInfo{
		SkillName: name,
		Version:   version,
		Source:    schema.SourceDynamic,
		Editable:  true,
	}
	b.Lock()
	defer b.Unlock()
	b.putSkill(&skill{SkillInfo: info, content: content})
	return info
}

// deleteSkill removes a dynamic skill. Without a version every dynamic
// version of the skill is removed.
func (b *Backend) deleteSkill(name, version string) error {
	b.Lock()
	defer b.Unlock()
	n := len(b.skills)
	b.skills = slices.DeleteFunc(b.skills, func(s *skill) bool {
		return s.Editable && s.SkillName == name && (version == "" || s.Version == version)
	})
	if len(b.skills) == n {
		return fmt.Errorf("dynamic skill not found: %s", schema.SkillRef(name, version))
	}
	return nil
}

// importScript reads one skill per line, as "name[@version] content".
// Blank lines and lines starting with # are skipped.
func (b *Backend) importScript(script string) schema.SkillImportResponse {
	var result schema.SkillImportResponse
	scanner := bufio.NewScanner(strings.NewReader(script))
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, content, _ := strings.Cut(line, " ")
		name, version := schema.ParseSkillRef(ref)
		if name == "" || strings.TrimSpace(content) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: expected name[@version] followed by content", n))
			continue
		}
		info := b.upsertSkill(name, version, strings.TrimSpace(content))
		result.Imported++
		result.SkillNames = append(result.SkillNames, info.Ref())
	}
	return result
}

// importSource registers the skill named by an owner/repo[@skill] source.
// Nothing is fetched, so the content only records where it came from.
func (b *Backend) importSource(source string) schema.SkillImportResponse {
	source = strings.TrimSpace(source)
	match := reSourceSlug.FindStringSubmatch(source)
	if match == nil {
		return schema.SkillImportResponse{
			Errors: []string{"Unsupported source: " + source},
		}
	}
	name := match[2]
	if match[3] != "" {
		name = match[3]
	}
	info := b.upsertSkill(name, "", "Imported from "+match[1]+"/"+match[2])
	return schema.SkillImportResponse{
		Imported:   1,
		SkillNames: []string{info.Ref()},
	}
}
