package ports_test

import (
	"github.com/target/oidc-gate/internal/mocks"
	authmocks "github.com/target/oidc-gate/internal/mocks/auth"
	"github.com/target/oidc-gate/internal/ports"
)

// Compile-time checks that the in-memory and generated fakes stay in step
// with the ports they stand in for.
var (
	_ ports.AuthProvider         = (*authmocks.MockAuthProvider)(nil)
	_ ports.SessionStore         = (*authmocks.MemorySessionStore)(nil)
	_ ports.NativeSessions       = (*authmocks.MemoryNativeSessions)(nil)
	_ ports.PostRepository       = (*authmocks.MemoryContent)(nil)
	_ ports.AccessGroupStore     = (*authmocks.MemoryContent)(nil)
	_ ports.CommentRepository    = (*authmocks.MemoryComments)(nil)
	_ ports.NativeUserRepository = (*authmocks.MemoryUsers)(nil)
	_ ports.InternalsStore       = (*authmocks.MemoryInternals)(nil)

	_ ports.AccessGroupStore = (*mocks.MockAccessGroupStore)(nil)
	_ ports.InternalsStore   = (*mocks.MockInternalsStore)(nil)
)
