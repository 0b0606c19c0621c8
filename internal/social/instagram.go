package social

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/TobiSchelling/bizscout/internal/httpx"
)

const (
	DefaultBaseURL = "https://www.instagram.com"
	DefaultAppID   = "936619743392459"

	profilePath = "/api/v1/users/web_profile_info/"
	browserUA   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// InstagramSource reads public profiles from Instagram's web profile
// endpoint.
type InstagramSource struct {
	baseURL string
	appID   string
	client  *http.Client
	retry   httpx.RetryConfig
}

// NewInstagramSource creates a source. Empty baseURL or appID use the
// public defaults.
func NewInstagramSource(baseURL, appID string, timeout time.Duration) *InstagramSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if appID == "" {
		appID = DefaultAppID
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	retry := httpx.DefaultRetryConfig()
	retry.MaxAttempts = 2
	return &InstagramSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		client:  &http.Client{Timeout: timeout},
		retry:   retry,
	}
}

type count struct {
	Count int `json:"count"`
}

type profileResponse struct {
	Data struct {
		User *struct {
			Username          string `json:"username"`
			Biography         string `json:"biography"`
			IsVerified        bool   `json:"is_verified"`
			IsBusinessAccount bool   `json:"is_business_account"`
			EdgeFollowedBy    count  `json:"edge_followed_by"`
			EdgeFollow        count  `json:"edge_follow"`
			Timeline          struct {
				Count int `json:"count"`
				Edges []struct {
					Node struct {
						EdgeLikedBy          *count `json:"edge_liked_by"`
						EdgeMediaPreviewLike *count `json:"edge_media_preview_like"`
						EdgeMediaToComment   count  `json:"edge_media_to_comment"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

// Lookup implements ProfileSource.
func (s *InstagramSource) Lookup(ctx context.Context, username string) (Profile, error) {
	endpoint := s.baseURL + profilePath + "?username=" + url.QueryEscape(username)

	var resp profileResponse
	err := httpx.DoJSON(ctx, s.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", browserUA)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-IG-App-ID", s.appID)
		return req, nil
	}, &resp, s.retry)
	if err != nil {
		if httpx.StatusCode(err) == http.StatusNotFound {
			return Profile{}, eris.Wrapf(ErrProfileNotFound, "username %s", username)
		}
		return Profile{}, eris.Wrapf(err, "looking up %s", username)
	}

	u := resp.Data.User
	if u == nil {
		return Profile{}, eris.Wrapf(ErrProfileNotFound, "username %s", username)
	}

	p := Profile{
		Username:   u.Username,
		Followers:  u.EdgeFollowedBy.Count,
		Following:  u.EdgeFollow.Count,
		MediaCount: u.Timeline.Count,
		Bio:        u.Biography,
		IsVerified: u.IsVerified,
		IsBusiness: u.IsBusinessAccount,
	}
	if p.Username == "" {
		p.Username = username
	}
	for _, e := range u.Timeline.Edges {
		likes := 0
		switch {
		case e.Node.EdgeLikedBy != nil:
			likes = e.Node.EdgeLikedBy.Count
		case e.Node.EdgeMediaPreviewLike != nil:
			likes = e.Node.EdgeMediaPreviewLike.Count
		}
		p.Recent = append(p.Recent, Post{Likes: likes, Comments: e.Node.EdgeMediaToComment.Count})
	}
	return p, nil
}
