package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/dataagent-io/dataagent/pkg/rules"
)

// RuleResponse is the wire form of one rule.
type RuleResponse struct {
	Name             string `json:"name"`
	Scope            string `json:"scope"`
	Description      string `json:"description,omitempty"`
	Inclusion        string `json:"inclusion"`
	FileMatchPattern string `json:"file_match_pattern,omitempty"`
	Priority         int    `json:"priority"`
	Override         bool   `json:"override,omitempty"`
	Enabled          bool   `json:"enabled"`
	Content          string `json:"content"`
}

// RuleListResponse is the body of GET /users/:user_id/rules.
type RuleListResponse struct {
	UserID string         `json:"user_id"`
	Rules  []RuleResponse `json:"rules"`
}

func ruleToResponse(r *rules.Rule) RuleResponse {
	return RuleResponse{
		Name:             r.Name,
		Scope:            string(r.Scope),
		Description:      r.Description,
		Inclusion:        string(r.Inclusion),
		FileMatchPattern: r.FileMatchPattern,
		Priority:         r.Priority,
		Override:         r.Override,
		Enabled:          r.Enabled,
		Content:          r.Content,
	}
}

// ruleStoreTarget authorizes the request against the path's user and
// resolves their rule store.
func (s *Server) ruleStoreTarget(c *echo.Context) (string, *rules.Store, error) {
	userID := c.Param("user_id")
	if userID == "" {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "user id is required")
	}
	if err := s.requireUserAccess(c, userID); err != nil {
		return "", nil, err
	}
	if s.ruleStores == nil {
		return "", nil, echo.NewHTTPError(http.StatusServiceUnavailable, "rule management is not available")
	}
	store, err := s.ruleStores(userID)
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to open rule store")
	}
	return userID, store, nil
}

// parseScope validates an optional scope query/body value.
func parseScope(v string) (rules.Scope, error) {
	switch rules.Scope(v) {
	case "", rules.ScopeGlobal, rules.ScopeUser, rules.ScopeProject:
		return rules.Scope(v), nil
	default:
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid scope: must be global, user, or project")
	}
}

// listRulesHandler handles GET /api/v1/users/:user_id/rules.
func (s *Server) listRulesHandler(c *echo.Context) error {
	userID, store, err := s.ruleStoreTarget(c)
	if err != nil {
		return err
	}
	scope, err := parseScope(c.QueryParam("scope"))
	if err != nil {
		return err
	}

	listed := store.ListRules(scope)
	out := make([]RuleResponse, 0, len(listed))
	for _, r := range listed {
		out = append(out, ruleToResponse(r))
	}
	return c.JSON(http.StatusOK, &RuleListResponse{UserID: userID, Rules: out})
}

// getRuleHandler handles GET /api/v1/users/:user_id/rules/:name.
func (s *Server) getRuleHandler(c *echo.Context) error {
	_, store, err := s.ruleStoreTarget(c)
	if err != nil {
		return err
	}
	scope, err := parseScope(c.QueryParam("scope"))
	if err != nil {
		return err
	}

	rule, err := store.GetRule(c.Param("name"), scope)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	return c.JSON(http.StatusOK, ruleToResponse(rule))
}

// PutRuleRequest is the body of PUT /users/:user_id/rules/:name.
type PutRuleRequest struct {
	Scope            string `json:"scope,omitempty"` // defaults to "user"
	Description      string `json:"description,omitempty"`
	Inclusion        string `json:"inclusion,omitempty"`
	FileMatchPattern string `json:"file_match_pattern,omitempty"`
	Priority         int    `json:"priority,omitempty"`
	Override         bool   `json:"override,omitempty"`
	Disabled         bool   `json:"disabled,omitempty"`
	Content          string `json:"content"`
}

// putRuleHandler handles PUT /api/v1/users/:user_id/rules/:name.
func (s *Server) putRuleHandler(c *echo.Context) error {
	_, store, err := s.ruleStoreTarget(c)
	if err != nil {
		return err
	}

	var req PutRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	// An empty description would make the saved file unparsable on reload.
	if req.Description == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "description is required")
	}
	scope, err := parseScope(req.Scope)
	if err != nil {
		return err
	}
	if scope == "" {
		scope = rules.ScopeUser
	}

	inclusion := rules.Inclusion(req.Inclusion)
	switch inclusion {
	case "":
		inclusion = rules.InclusionAlways
	case rules.InclusionAlways, rules.InclusionFileMatch, rules.InclusionManual:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid inclusion: must be always, fileMatch, or manual")
	}
	if inclusion == rules.InclusionFileMatch && req.FileMatchPattern == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "fileMatch inclusion requires file_match_pattern")
	}

	priority := req.Priority
	if priority == 0 {
		priority = rules.DefaultPriority
	}
	if priority < rules.MinPriority || priority > rules.MaxPriority {
		return echo.NewHTTPError(http.StatusBadRequest, "priority must be between 1 and 100")
	}

	rule := &rules.Rule{
		Name:             c.Param("name"),
		Description:      req.Description,
		Inclusion:        inclusion,
		FileMatchPattern: req.FileMatchPattern,
		Priority:         priority,
		Override:         req.Override,
		Enabled:          !req.Disabled,
		Content:          req.Content,
		Scope:            scope,
	}
	if err := store.SaveRule(rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ruleToResponse(rule))
}

// deleteRuleHandler handles DELETE /api/v1/users/:user_id/rules/:name.
func (s *Server) deleteRuleHandler(c *echo.Context) error {
	_, store, err := s.ruleStoreTarget(c)
	if err != nil {
		return err
	}
	scope, err := parseScope(c.QueryParam("scope"))
	if err != nil {
		return err
	}
	if scope == "" {
		scope = rules.ScopeUser
	}

	if err := store.DeleteRule(c.Param("name"), scope); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// ValidateRuleRequest is the body of POST /users/:user_id/rules/validate.
type ValidateRuleRequest struct {
	Content string `json:"content"`
}

// ValidateRuleResponse reports the outcome of rule content validation.
type ValidateRuleResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// validateRuleHandler handles POST /api/v1/users/:user_id/rules/validate.
// The content is parsed exactly as the store would on reload; errors make
// the rule unloadable, warnings do not.
func (s *Server) validateRuleHandler(c *echo.Context) error {
	if _, _, err := s.ruleStoreTarget(c); err != nil {
		return err
	}

	var req ValidateRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	resp := ValidateRuleResponse{Valid: true, Errors: []string{}, Warnings: []string{}}
	rule, err := rules.Parse([]byte(req.Content), rules.ScopeUser, nil)
	if err != nil {
		resp.Valid = false
		resp.Errors = append(resp.Errors, err.Error())
		return c.JSON(http.StatusOK, resp)
	}

	if rule.FileMatchPattern != "" && rule.Inclusion != rules.InclusionFileMatch {
		resp.Warnings = append(resp.Warnings, "fileMatchPattern is ignored unless inclusion is fileMatch")
	}
	if rule.Content == "" {
		resp.Warnings = append(resp.Warnings, "rule body is empty")
	}
	if !rule.Enabled {
		resp.Warnings = append(resp.Warnings, "rule is disabled and will never apply")
	}
	return c.JSON(http.StatusOK, resp)
}

// RuleConflictsResponse is the body of GET /users/:user_id/rules/conflicts.
type RuleConflictsResponse struct {
	UserID    string           `json:"user_id"`
	Conflicts []rules.Conflict `json:"conflicts"`
}

// listRuleConflictsHandler reports same-name collisions across scopes as
// the merger would resolve them.
func (s *Server) listRuleConflictsHandler(c *echo.Context) error {
	userID, store, err := s.ruleStoreTarget(c)
	if err != nil {
		return err
	}

	all := store.ListRules("")
	matches := make([]rules.MatchResult, 0, len(all))
	for _, r := range all {
		if !r.Enabled {
			continue
		}
		matches = append(matches, rules.MatchResult{Rule: r, Reason: "configured"})
	}
	result := rules.Merge(matches, 0)

	conflicts := result.Conflicts
	if conflicts == nil {
		conflicts = []rules.Conflict{}
	}
	return c.JSON(http.StatusOK, &RuleConflictsResponse{UserID: userID, Conflicts: conflicts})
}

// reloadRulesHandler handles POST /api/v1/users/:user_id/rules/reload.
func (s *Server) reloadRulesHandler(c *echo.Context) error {
	_, store, err := s.ruleStoreTarget(c)
	if err != nil {
		return err
	}
	if err := store.Reload(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
