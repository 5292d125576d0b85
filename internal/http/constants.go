package httpx

// Page template names.
const (
	PageIndex       = "index"
	PagePost        = "post"
	PageSearch      = "search"
	PageForbidden   = "forbidden"
	PageFatal       = "fatal"
	PageNativeLogin = "native-login"
	PageNotFound    = "notfound"
)

const (
	// DefaultPageSize is the number of posts on one listing page.
	DefaultPageSize = 10

	// MaxCommentsPerPost bounds the comments rendered under a post.
	MaxCommentsPerPost = 50

	// FeedSize is the number of items in the RSS feed.
	FeedSize = 20
)

// Auth flow labels used for metrics.
const (
	FlowLoginBegin = "login_begin"
	FlowLogin      = "login"
	FlowLogout     = "logout"
)
