// Package mocks provides gomock implementations of the storage ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockAccessGroupStore(ctrl)
//	store.EXPECT().GetAccessGroups(gomock.Any(), int64(7)).Return([]string{"staff"}, nil)
//
// Stateful in-memory doubles live in the auth subpackage.
package mocks

// MockAccessGroupStore: GetAccessGroups, SetAccessGroups
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=access_group_store_mock.go github.com/target/oidc-gate/internal/ports AccessGroupStore

// MockInternalsStore: Get, SetIfAbsent
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=internals_store_mock.go github.com/target/oidc-gate/internal/ports InternalsStore
