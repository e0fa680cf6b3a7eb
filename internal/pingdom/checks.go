package pingdom

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"checkloader/internal/blueprint"
)

// CheckRef identifies one check created at the service.
type CheckRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tag is one tag attached to a remote check; the service returns names lower-cased.
type Tag struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Check is one remote check returned by the list call.
type Check struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
	Status   string `json:"status"`
	Tags     []Tag  `json:"tags"`
}

// TagNames returns tag names in service order.
func (c Check) TagNames() []string {
	out := make([]string, 0, len(c.Tags))
	for _, tag := range c.Tags {
		out = append(out, tag.Name)
	}
	return out
}

// HasTags reports whether every qualifier, lower-cased, is among the check tags.
// Params: tag qualifiers.
// Returns: true when all qualifiers match or none are given.
func (c Check) HasTags(qualifiers []string) bool {
	names := make(map[string]struct{}, len(c.Tags))
	for _, tag := range c.Tags {
		names[tag.Name] = struct{}{}
	}
	for _, qualifier := range qualifiers {
		if _, ok := names[strings.ToLower(qualifier)]; !ok {
			return false
		}
	}
	return true
}

// ToCreateRequest maps a blueprint onto the create-check form fields.
// Empty id lists and a nil custom message are omitted.
// Params: finalized blueprint.
// Returns: form values for POST /checks.
func ToCreateRequest(b *blueprint.Blueprint) url.Values {
	form := url.Values{}
	form.Set("name", b.Name())
	form.Set("host", blueprint.StripScheme(b.BaseURL))
	form.Set("url", b.Path)
	form.Set("encryption", strconv.FormatBool(b.Encrypted))
	form.Set("type", "http")
	form.Set("resolution", strconv.Itoa(b.IntervalMinutes))
	form.Set("sendnotificationwhendown", strconv.Itoa(b.NotifyAfterFailures))
	form.Set("notifyagainevery", strconv.Itoa(b.NotifyAgainEvery))
	form.Set("responsetime_threshold", strconv.Itoa(b.TimeoutMs))
	setJoined(form, "teamids", b.TeamIDs)
	setJoined(form, "userids", b.UserIDs)
	setJoined(form, "integrationids", b.IntegrationIDs)
	form.Set("notifywhenbackup", strconv.FormatBool(b.NotifyWhenBackUp))
	if b.CustomMessage != nil {
		form.Set("custom_message", *b.CustomMessage)
	}
	form.Set("severity_level", strings.ToUpper(b.Priority))

	filters := make([]string, 0, len(b.Regions))
	for _, region := range b.Regions {
		filters = append(filters, "region:"+region)
	}
	form.Set("probe_filters", strings.Join(filters, ","))
	form.Set("tags", strings.Join(b.Tags, ","))
	return form
}

func setJoined(form url.Values, key string, values []string) {
	if len(values) == 0 {
		return
	}
	form.Set(key, strings.Join(values, ","))
}

// CreateCheck creates one check from a blueprint.
// Params: context and finalized blueprint.
// Returns: created check reference or transport/status error.
func (c *Client) CreateCheck(ctx context.Context, b *blueprint.Blueprint) (CheckRef, error) {
	var decoded struct {
		Check CheckRef `json:"check"`
	}
	if err := c.do(ctx, "create check", http.MethodPost, nil, ToCreateRequest(b), &decoded); err != nil {
		return CheckRef{}, err
	}
	if decoded.Check.Name == "" {
		decoded.Check.Name = b.Name()
	}
	return decoded.Check, nil
}

// ListQuery builds the list-call query: tags is qualifiers followed by check names.
// Params: check names and tag qualifiers, either possibly empty.
// Returns: query values for GET /checks.
func ListQuery(checkNames, tagQualifiers []string) url.Values {
	query := url.Values{}
	query.Set("include_tags", "true")
	tags := make([]string, 0, len(tagQualifiers)+len(checkNames))
	tags = append(tags, tagQualifiers...)
	tags = append(tags, checkNames...)
	if len(tags) > 0 {
		query.Set("tags", strings.Join(tags, ","))
	}
	return query
}

// ListChecks fetches checks pre-matched by any tag at the service, then keeps only
// checks carrying every tag qualifier.
// Params: context, check names, and tag qualifiers.
// Returns: qualified checks or transport/status error.
func (c *Client) ListChecks(ctx context.Context, checkNames, tagQualifiers []string) ([]Check, error) {
	query := ListQuery(checkNames, tagQualifiers)
	var decoded struct {
		Checks []Check `json:"checks"`
	}
	if err := c.do(ctx, "list checks", http.MethodGet, query, nil, &decoded); err != nil {
		return nil, err
	}
	if c.logger != nil {
		c.logger.Debug("list checks ok", "prequalified", len(decoded.Checks), "criteria", query.Encode())
	}

	out := make([]Check, 0, len(decoded.Checks))
	for _, check := range decoded.Checks {
		if check.HasTags(tagQualifiers) {
			out = append(out, check)
		}
	}
	return out, nil
}

// DeleteChecks deletes checks by id in one call.
// Params: context and check ids.
// Returns: transport/status error; no ids is a no-op.
func (c *Client) DeleteChecks(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	query := url.Values{}
	query.Set("delcheckids", strings.Join(parts, ","))
	if err := c.do(ctx, "delete checks", http.MethodDelete, query, nil, nil); err != nil {
		return fmt.Errorf("delete %d checks: %w", len(ids), err)
	}
	return nil
}
