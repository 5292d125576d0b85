package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/target/oidc-gate/internal/domain/access"
	"github.com/target/oidc-gate/internal/domain/model"
	"github.com/target/oidc-gate/internal/ports"
)

// Surfaces label where a decision was enforced, for logs and metrics.
const (
	SurfaceSite    = "site"
	SurfacePost    = "post"
	SurfaceContent = "content"
	SurfaceList    = "list"
	SurfaceSearch  = "search"
	SurfaceFeed    = "feed"
	SurfaceREST    = "rest"
	SurfaceXMLRPC  = "xmlrpc"
)

// DecisionRecorder receives every access decision.
type DecisionRecorder interface {
	RecordDecision(surface string, decision access.Decision)
}

// AccessServiceOptions groups dependencies for AccessService.
type AccessServiceOptions struct {
	Groups  ports.AccessGroupStore // Required
	Metrics DecisionRecorder       // Optional
	Logger  *slog.Logger           // Optional
}

// AccessService applies access decisions to a request.
type AccessService struct {
	groups  ports.AccessGroupStore
	metrics DecisionRecorder
	logger  *slog.Logger
}

// NewAccessService constructs an AccessService.
func NewAccessService(opts AccessServiceOptions) *AccessService {
	if opts.Groups == nil {
		panic("NewAccessService: Groups is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessService{groups: opts.Groups, metrics: opts.Metrics, logger: logger}
}

// Check decides acl for the visitor and classifies the request.
func (s *AccessService) Check(ctx context.Context, rc *RequestContext, surface string, acl access.ACL) access.Decision {
	// A public ACL never consults the session, keeping anonymous requests cheap.
	var facts access.Facts
	if !acl.IsEveryone() {
		facts = rc.Facts(ctx)
	}
	v := access.Check(acl, facts)
	if v.NonPublic {
		rc.MarkNonPublic()
	}
	if v.Decision == access.DeniedNotInGroups {
		s.logger.InfoContext(ctx, "access denied",
			"surface", surface,
			"required", acl.String(),
			"user_groups", strings.Join(facts.Groups, ","))
	}
	s.record(surface, v.Decision)
	return v.Decision
}

func (s *AccessService) record(surface string, d access.Decision) {
	if s.metrics != nil {
		s.metrics.RecordDecision(surface, d)
	}
}

// CheckSite decides the site-wide ACL. The first evaluation in a request wins.
func (s *AccessService) CheckSite(ctx context.Context, rc *RequestContext) access.Decision {
	if rc.siteVerdict != nil {
		return rc.siteVerdict.Decision
	}
	d := s.Check(ctx, rc, SurfaceSite, rc.Gate.SiteACL)
	rc.siteVerdict = &access.Verdict{Decision: d, NonPublic: !rc.Gate.SiteACL.IsEveryone()}
	return d
}

// PostACL loads the access list of a post.
func (s *AccessService) PostACL(ctx context.Context, postID int64) (access.ACL, error) {
	groups, err := s.groups.GetAccessGroups(ctx, postID)
	if err != nil {
		return access.ACL{}, err
	}
	return access.FromList(access.Sanitize(groups)), nil
}

// CheckPost decides a post's ACL. A failure to load the ACL denies access.
func (s *AccessService) CheckPost(ctx context.Context, rc *RequestContext, surface string, postID int64) access.Decision {
	if postID <= 0 {
		return access.Allowed
	}
	acl, err := s.PostACL(ctx, postID)
	if err != nil {
		s.logger.ErrorContext(ctx, "load post access list", "post_id", postID, "error", err)
		rc.MarkNonPublic()
		s.record(surface, access.DeniedNotInGroups)
		return access.DeniedNotInGroups
	}
	return s.Check(ctx, rc, surface, acl)
}

// CheckContent decides a post, using the parent of a revision.
func (s *AccessService) CheckContent(ctx context.Context, rc *RequestContext, surface string, p *model.Post) access.Decision {
	if p == nil {
		return access.Allowed
	}
	return s.CheckPost(ctx, rc, surface, p.AccessTarget())
}

// CheckSiteAndPost applies the site ACL and then, for a non-zero id, the
// post ACL. Machine surfaces use it.
func (s *AccessService) CheckSiteAndPost(ctx context.Context, rc *RequestContext, surface string, postID int64) access.Decision {
	if d := s.CheckSite(ctx, rc); d != access.Allowed {
		return d
	}
	if postID == 0 {
		return access.Allowed
	}
	return s.CheckPost(ctx, rc, surface, postID)
}

// FilterPosts drops denied posts. allNotLoggedIn is true when posts was
// non-empty and every post was denied for lack of a login.
func (s *AccessService) FilterPosts(ctx context.Context, rc *RequestContext, surface string, posts []*model.Post) (kept []*model.Post, allNotLoggedIn bool) {
	kept = make([]*model.Post, 0, len(posts))
	notLoggedIn := 0
	for _, p := range posts {
		switch s.CheckContent(ctx, rc, surface, p) {
		case access.Allowed:
			kept = append(kept, p)
		case access.DeniedNotLoggedIn:
			notLoggedIn++
		}
	}
	return kept, len(posts) > 0 && notLoggedIn == len(posts)
}

// FilterSearch filters a page of search hits down to visible post ids and
// adjusts the reported total. A denied site yields no results.
func (s *AccessService) FilterSearch(ctx context.Context, rc *RequestContext, posts []*model.Post, total int) ([]int64, int) {
	if s.CheckSite(ctx, rc) != access.Allowed {
		return []int64{}, 0
	}
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		if s.CheckContent(ctx, rc, SurfaceREST, p) == access.Allowed {
			ids = append(ids, p.ID)
		} else {
			total--
		}
	}
	return ids, max(total, 0)
}
