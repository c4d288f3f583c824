// Hand-written mock of transport.Link in the shape mockgen generates
// (NewMockLink, EXPECT, ctrl.Call); mockgen is not run for this package.

package server

import (
	context "context"
	reflect "reflect"
	time "time"

	gomock "go.uber.org/mock/gomock"
)

// MockLink is a mock of the transport.Link interface.
type MockLink struct {
	ctrl     *gomock.Controller
	recorder *MockLinkMockRecorder
}

// MockLinkMockRecorder is the mock recorder for MockLink.
type MockLinkMockRecorder struct {
	mock *MockLink
}

// NewMockLink creates a new mock instance.
func NewMockLink(ctrl *gomock.Controller) *MockLink {
	mock := &MockLink{ctrl: ctrl}
	mock.recorder = &MockLinkMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockLink) EXPECT() *MockLinkMockRecorder {
	return m.recorder
}

// Poll mocks base method.
func (m *MockLink) Poll(ctx context.Context, timeout time.Duration) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Poll", ctx, timeout)
	ret0, _ := ret[0].(bool)
	return ret0
}

// Poll indicates an expected call of Poll.
func (mr *MockLinkMockRecorder) Poll(ctx, timeout interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Poll", reflect.TypeOf((*MockLink)(nil).Poll), ctx, timeout)
}

// RecvPacket mocks base method.
func (m *MockLink) RecvPacket() (string, bool) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RecvPacket")
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(bool)
	return ret0, ret1
}

// RecvPacket indicates an expected call of RecvPacket.
func (mr *MockLinkMockRecorder) RecvPacket() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RecvPacket", reflect.TypeOf((*MockLink)(nil).RecvPacket))
}

// SendPacket mocks base method.
func (m *MockLink) SendPacket(packet string) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "SendPacket", packet)
}

// SendPacket indicates an expected call of SendPacket.
func (mr *MockLinkMockRecorder) SendPacket(packet interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendPacket", reflect.TypeOf((*MockLink)(nil).SendPacket), packet)
}

// URI mocks base method.
func (m *MockLink) URI() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "URI")
	ret0, _ := ret[0].(string)
	return ret0
}

// URI indicates an expected call of URI.
func (mr *MockLinkMockRecorder) URI() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "URI", reflect.TypeOf((*MockLink)(nil).URI))
}

// PollError mocks base method.
func (m *MockLink) PollError() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PollError")
	ret0, _ := ret[0].(error)
	return ret0
}

// PollError indicates an expected call of PollError.
func (mr *MockLinkMockRecorder) PollError() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PollError", reflect.TypeOf((*MockLink)(nil).PollError))
}
