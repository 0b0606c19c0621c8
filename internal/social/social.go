// Package social resolves a business's Instagram presence.
package social

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TobiSchelling/bizscout/internal/business"
	"github.com/TobiSchelling/bizscout/internal/throttle"
)

const (
	maxUsernameLen  = 20
	engagementPosts = 12
)

// ErrProfileNotFound means the username has no public profile.
var ErrProfileNotFound = eris.New("instagram profile not found")

var (
	usernameRe = regexp.MustCompile(`instagram\.com/([^/?#]+)`)

	reservedPaths = map[string]bool{
		"p": true, "explore": true, "accounts": true, "reel": true, "stories": true,
	}

	stopTokens = map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
		"in": true, "at": true, "for": true, "llc": true, "inc": true, "co": true, "corp": true,
	}
)

// Post is the interaction count of one recent post.
type Post struct {
	Likes    int
	Comments int
}

// Profile is a raw account as returned by a ProfileSource.
type Profile struct {
	Username   string
	Followers  int
	Following  int
	MediaCount int
	Bio        string
	IsVerified bool
	IsBusiness bool
	Recent     []Post
}

// ProfileSource looks up one username. Missing accounts return
// ErrProfileNotFound.
type ProfileSource interface {
	Lookup(ctx context.Context, username string) (Profile, error)
}

// Resolver finds the profile that belongs to a business.
type Resolver struct {
	source  ProfileSource
	limiter *throttle.Limiter
}

// NewResolver creates a Resolver. limiter may be nil.
func NewResolver(source ProfileSource, limiter *throttle.Limiter) *Resolver {
	return &Resolver{source: source, limiter: limiter}
}

// Resolve tries each candidate username in order and returns the first
// profile that exists. It returns nil, nil when no candidate resolves.
func (r *Resolver) Resolve(ctx context.Context, name, discoveredURL string) (*business.SocialProfile, error) {
	log := zap.L().With(zap.String("business", name))

	for _, username := range CandidateUsernames(name, discoveredURL) {
		var p Profile
		err := r.limiter.Do(ctx, func(ctx context.Context) error {
			var err error
			p, err = r.source.Lookup(ctx, username)
			return err
		})
		switch {
		case err == nil:
			sp := toSocialProfile(p)
			log.Info("resolved instagram profile", zap.String("username", sp.Username), zap.Int("followers", sp.Followers))
			return &sp, nil
		case errors.Is(err, ErrProfileNotFound):
			log.Debug("instagram profile not found", zap.String("username", username))
		case ctx.Err() != nil:
			return nil, eris.Wrap(ctx.Err(), "resolving instagram profile")
		default:
			log.Warn("instagram lookup failed", zap.String("username", username), zap.Error(err))
		}
	}
	return nil, nil
}

func toSocialProfile(p Profile) business.SocialProfile {
	recent := p.Recent
	if len(recent) > engagementPosts {
		recent = recent[:engagementPosts]
	}
	likes := make([]int, len(recent))
	comments := make([]int, len(recent))
	for i, post := range recent {
		likes[i] = post.Likes
		comments[i] = post.Comments
	}
	return business.SocialProfile{
		Username:       p.Username,
		Followers:      p.Followers,
		Following:      p.Following,
		Posts:          p.MediaCount,
		EngagementRate: Engagement(p.Followers, likes, comments),
		Bio:            p.Bio,
		IsVerified:     p.IsVerified,
		IsBusiness:     p.IsBusiness,
	}
}

// Engagement computes (mean likes + mean comments) / followers * 100 over
// at most the 12 most recent posts, rounded to two decimals.
func Engagement(followers int, likes, comments []int) float64 {
	if followers <= 0 || len(likes) == 0 {
		return 0
	}
	return round2((mean(likes) + mean(comments)) / float64(followers) * 100)
}

func mean(xs []int) float64 {
	if len(xs) > engagementPosts {
		xs = xs[:engagementPosts]
	}
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// UsernameFromURL parses the account name out of an Instagram URL. It
// returns "" for non-profile paths.
func UsernameFromURL(raw string) string {
	m := usernameRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	username := strings.Trim(m[1], "/")
	if username == "" || reservedPaths[strings.ToLower(username)] {
		return ""
	}
	return username
}

// CandidateUsernames lists the usernames to try for a business, most
// likely first.
func CandidateUsernames(name, discoveredURL string) []string {
	if u := UsernameFromURL(discoveredURL); u != "" {
		return []string{u}
	}

	base := alnum(strings.ToLower(name))
	if base == "" {
		return nil
	}
	out := []string{base}

	var kept []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(name), notAlnum) {
		if !stopTokens[tok] {
			kept = append(kept, tok)
		}
	}
	if short := strings.Join(kept, ""); short != "" && short != base {
		out = append(out, short)
	}

	if len(base) > maxUsernameLen {
		if trunc := base[:maxUsernameLen]; trunc != out[len(out)-1] {
			out = append(out, trunc)
		}
	}
	return out
}

func notAlnum(r rune) bool {
	return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
}

func alnum(s string) string {
	return strings.Map(func(r rune) rune {
		if notAlnum(r) {
			return -1
		}
		return r
	}, s)
}
