// Package mocks provides test doubles for the rocketreach client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	rocketreach "github.com/sells-group/contact-finder/pkg/rocketreach"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Account provides a mock function with given fields: ctx
func (_m *MockClient) Account(ctx context.Context) (*rocketreach.Account, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Account")
	}

	var r0 *rocketreach.Account
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (*rocketreach.Account, error)); ok {
		return rf(ctx)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*rocketreach.Account)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// SearchPeople provides a mock function with given fields: ctx, req
func (_m *MockClient) SearchPeople(ctx context.Context, req rocketreach.SearchRequest) (*rocketreach.SearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for SearchPeople")
	}

	var r0 *rocketreach.SearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, rocketreach.SearchRequest) (*rocketreach.SearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*rocketreach.SearchResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// LookupPerson provides a mock function with given fields: ctx, id
func (_m *MockClient) LookupPerson(ctx context.Context, id string) (*rocketreach.Person, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for LookupPerson")
	}

	var r0 *rocketreach.Person
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*rocketreach.Person, error)); ok {
		return rf(ctx, id)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*rocketreach.Person)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
