// Package endpoints maps method names onto the vendor's HTTP surface. Every
// endpoint is a static descriptor; one dispatch function turns a descriptor
// plus arguments into a transport call. Adding an endpoint means adding a
// table row, not writing code.
package endpoints

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"igclient/pkg/errors"
	"igclient/pkg/signature"
	"igclient/pkg/transport"
)

// Reshaper rewrites a modern response into a legacy schema. It is applied
// only when the caller asks via InvokeLegacy, never inside the transport.
type Reshaper func(map[string]interface{}) map[string]interface{}

// Descriptor statically describes one endpoint
type Descriptor struct {
	Path         string
	Verb         string
	Signed       bool
	AuthRequired bool
	Version      string
	Reshape      Reshaper
}

// Table is the endpoint catalogue, keyed by method name
var Table = map[string]Descriptor{
	"current_user":    {Path: "accounts/current_user/", Verb: "GET", AuthRequired: true},
	"edit_profile":    {Path: "accounts/edit_profile/", Verb: "POST", Signed: true, AuthRequired: true},
	"set_private":     {Path: "accounts/set_private/", Verb: "POST", Signed: true, AuthRequired: true},
	"set_public":      {Path: "accounts/set_public/", Verb: "POST", Signed: true, AuthRequired: true},
	"logout":          {Path: "accounts/logout/", Verb: "POST"},
	"sync_features":   {Path: "qe/sync/", Verb: "POST", Signed: true, AuthRequired: true},
	"timeline_feed":   {Path: "feed/timeline/", Verb: "GET", AuthRequired: true},
	"user_feed":       {Path: "feed/user/{user_id}/", Verb: "GET", AuthRequired: true},
	"tag_feed":        {Path: "feed/tag/{tag}/", Verb: "GET", AuthRequired: true},
	"location_feed":   {Path: "feed/location/{location_id}/", Verb: "GET", AuthRequired: true},
	"liked_feed":      {Path: "feed/liked/", Verb: "GET", AuthRequired: true},
	"user_story_feed": {Path: "feed/user/{user_id}/reel_media/", Verb: "GET", AuthRequired: true},
	"user_info":       {Path: "users/{user_id}/info/", Verb: "GET", AuthRequired: true},
	"search_users":    {Path: "users/search/", Verb: "GET", AuthRequired: true},
	"search_tags":     {Path: "tags/search/", Verb: "GET", AuthRequired: true},
	"media_info":      {Path: "media/{media_id}/info/", Verb: "GET", AuthRequired: true},
	"media_like":      {Path: "media/{media_id}/like/", Verb: "POST", Signed: true, AuthRequired: true},
	"media_unlike":    {Path: "media/{media_id}/unlike/", Verb: "POST", Signed: true, AuthRequired: true},
	"media_likers":    {Path: "media/{media_id}/likers/", Verb: "GET", AuthRequired: true},
	"media_delete":    {Path: "media/{media_id}/delete/", Verb: "POST", Signed: true, AuthRequired: true},
	"media_comments":  {Path: "media/{media_id}/comments/", Verb: "GET", AuthRequired: true},
	"post_comment":    {Path: "media/{media_id}/comment/", Verb: "POST", Signed: true, AuthRequired: true},
	"delete_comment":  {Path: "media/{media_id}/comment/{comment_id}/delete/", Verb: "POST", Signed: true, AuthRequired: true},
	"follow":          {Path: "friendships/create/{user_id}/", Verb: "POST", Signed: true, AuthRequired: true},
	"unfollow":        {Path: "friendships/destroy/{user_id}/", Verb: "POST", Signed: true, AuthRequired: true},
	"friendship_show": {Path: "friendships/show/{user_id}/", Verb: "GET", AuthRequired: true},
	"user_followers":  {Path: "friendships/{user_id}/followers/", Verb: "GET", AuthRequired: true},
	"user_following":  {Path: "friendships/{user_id}/following/", Verb: "GET", AuthRequired: true},
	"pending_inbox":   {Path: "direct_v2/pending_inbox/", Verb: "GET", AuthRequired: true},
	"explore":         {Path: "discover/explore/", Verb: "GET", AuthRequired: true},
	"oembed":          {Path: "oembed/", Verb: "GET"},
	"megaphone_log":   {Path: "megaphone/log/", Verb: "POST", AuthRequired: true},
	"expose":          {Path: "qe/expose/", Verb: "POST", Signed: true, AuthRequired: true},
	"top_search":      {Path: "fbsearch/topsearch/", Verb: "GET", AuthRequired: true},
	"reels_tray":      {Path: "feed/reels_tray/", Verb: "GET", AuthRequired: true},
	"user_tags":       {Path: "usertags/{user_id}/feed/", Verb: "GET", AuthRequired: true},
	"blocked_list":    {Path: "users/blocked_list/", Verb: "GET", AuthRequired: true},
	"block":           {Path: "friendships/block/{user_id}/", Verb: "POST", Signed: true, AuthRequired: true},
	"unblock":         {Path: "friendships/unblock/{user_id}/", Verb: "POST", Signed: true, AuthRequired: true},
}

// Args fills path template placeholders
type Args map[string]string

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// expandPath substitutes {placeholders} in a path template
func expandPath(template string, args Args) (string, error) {
	var missing string
	path := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		value, ok := args[key]
		if !ok || value == "" {
			missing = key
			return m
		}
		return url.PathEscape(value)
	})
	if missing != "" {
		return "", errors.NewValidation(missing, "missing path argument")
	}
	return path, nil
}

// Invoke dispatches an endpoint by name. POST bodies for auth-required
// endpoints are prefixed with the session's authenticated params; comment
// posting additionally carries the typing-breadcrumb header.
func Invoke(ctx context.Context, client *transport.Client, name string, args Args, params *signature.Params, query url.Values) (map[string]interface{}, error) {
	desc, ok := Table[name]
	if !ok {
		return nil, errors.NewValidation("endpoint", fmt.Sprintf("unknown endpoint %q", name))
	}

	path, err := expandPath(desc.Path, args)
	if err != nil {
		return nil, err
	}

	if desc.AuthRequired && client.AuthenticatedUserID() == "" {
		return nil, errors.New(errors.KindLoginRequired, "endpoint requires authentication", 0)
	}

	req := transport.Request{
		Endpoint: path,
		Query:    query,
		Version:  desc.Version,
	}

	if desc.Verb == "POST" {
		merged := params
		if desc.AuthRequired {
			merged = client.AuthenticatedParams()
			if params != nil {
				for _, key := range params.Keys() {
					value, _ := params.Get(key)
					merged.Set(key, value)
				}
			}
		}
		if merged == nil {
			req.EmptyPost = true
		} else {
			req.Params = merged
			req.Unsigned = !desc.Signed
		}

		if name == "post_comment" {
			req.Headers = map[string]string{
				"user_breadcrumb": signature.Breadcrumb(commentSize(params)),
			}
		}
	}

	return client.Call(ctx, req)
}

// InvokeLegacy dispatches an endpoint and rewrites the response into the
// legacy schema when the descriptor carries a reshaper.
func InvokeLegacy(ctx context.Context, client *transport.Client, name string, args Args, params *signature.Params, query url.Values) (map[string]interface{}, error) {
	resp, err := Invoke(ctx, client, name, args, params, query)
	if err != nil {
		return nil, err
	}
	if desc, ok := Table[name]; ok && desc.Reshape != nil {
		return desc.Reshape(resp), nil
	}
	return resp, nil
}

// commentSize measures the comment text for the breadcrumb token
func commentSize(params *signature.Params) int {
	if params == nil {
		return 0
	}
	if v, ok := params.Get("comment_text"); ok {
		if s, ok := v.(string); ok {
			return len(strings.TrimSpace(s))
		}
	}
	return 0
}
